package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName             = "Sable"
	defaultAppEnv              = "development"
	defaultPort                = "8080"
	defaultLogLevel            = "info"
	defaultShutdownDelay       = 10 * time.Second
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultExternalCallTimeout = 10 * time.Second
	defaultSweepInterval       = time.Minute
	idemTTLSecondsEnvVar       = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar           = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar      = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar     = "SHUTDOWN_TIMEOUT"
	externalTimeoutEnvVar      = "EXTERNAL_CALL_TIMEOUT"
	sweepIntervalEnvVar        = "SWEEP_INTERVAL"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName             string
	AppEnv              string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	LedgerURL           string
	WalletProviderURL   string
	GatewayURL          string
	ShutdownPeriod      time.Duration
	IdempotencyTTL      time.Duration
	ExternalCallTimeout time.Duration
	SweepInterval       time.Duration
	RateLimitPerMin     int
}

// Load reads configuration values from the environment and populates a Config
// instance. Outside development, database and redis are mandatory; the
// external service URLs are optional everywhere and fall back to in-process
// simulators when empty.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		LedgerURL:           os.Getenv("LEDGER_URL"),
		WalletProviderURL:   os.Getenv("WALLET_PROVIDER_URL"),
		GatewayURL:          os.Getenv("GATEWAY_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		ExternalCallTimeout: defaultExternalCallTimeout,
		SweepInterval:       defaultSweepInterval,
		RateLimitPerMin:     30,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if v := os.Getenv(externalTimeoutEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", externalTimeoutEnvVar, err)
		}
		cfg.ExternalCallTimeout = d
	}

	if v := os.Getenv(sweepIntervalEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", sweepIntervalEnvVar, err)
		}
		cfg.SweepInterval = d
	}

	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_MIN: %w", err)
		}
		cfg.RateLimitPerMin = n
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
