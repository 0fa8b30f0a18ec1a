package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sable-exchange/sable/internal/banking"
	"github.com/sable-exchange/sable/internal/commission"
	"github.com/sable-exchange/sable/internal/config"
	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
	"github.com/sable-exchange/sable/internal/ledger"
	"github.com/sable-exchange/sable/internal/member"
	"github.com/sable-exchange/sable/internal/metrics"
	"github.com/sable-exchange/sable/internal/middleware"
	"github.com/sable-exchange/sable/internal/notification"
	"github.com/sable-exchange/sable/internal/reconcile"
	"github.com/sable-exchange/sable/internal/walletpro"
	"github.com/sable-exchange/sable/internal/withdraw"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes, and returns the
// reconciliation looper for main to run.
func Setup(app *fiber.App, d Deps) (*reconcile.Looper, error) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	var m *metrics.Metrics
	if d.Registry != nil {
		m = metrics.New(d.Registry)
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Registry)))
	}

	RegisterHealthRoutes(app, d)

	// External collaborators: real connectors when configured, in-process
	// simulators otherwise.
	var ledgerClient ledger.Client
	if d.Cfg.LedgerURL != "" {
		ledgerClient = ledger.NewHTTP(d.Cfg.LedgerURL, d.Cfg.ExternalCallTimeout)
	} else {
		ledgerClient = ledger.NewInMemory()
	}

	var provider walletpro.Provider
	if d.Cfg.WalletProviderURL != "" {
		provider = walletpro.NewHTTP(d.Cfg.WalletProviderURL, d.Cfg.ExternalCallTimeout)
	} else {
		provider = walletpro.NewStatic(50)
	}

	var gateway banking.Gateway
	if d.Cfg.GatewayURL != "" {
		gateway = banking.NewHTTPGateway(d.Cfg.GatewayURL, d.Cfg.ExternalCallTimeout)
	} else {
		gateway = banking.NewStaticGateway("")
	}

	// Repositories: Postgres in real deployments, memory in dev.
	var (
		currencies       currency.Repository
		funds            fund.Store
		members          member.Repository
		bankingRepo      banking.Repository
		notificationRepo notification.Repository
	)
	if d.DB != nil {
		currencies = currency.NewPostgresRepository(d.DB)
		funds = fund.NewPostgresStore(d.DB)
		members = member.NewPostgresRepository(d.DB)
		bankingRepo = banking.NewPostgresRepository(d.DB)
		notificationRepo = notification.NewPostgresRepository(d.DB)
	} else {
		currencies = devCurrencies()
		funds = fund.NewMemoryStore()
		members = member.NewMemoryRepository()
		bankingRepo = banking.NewMemoryRepository()
		notificationRepo = notification.NewMemoryRepository()
	}

	notifier := notification.NewStoreNotifier(notificationRepo, d.Logger)

	memberSvc := member.NewService(members, funds, currencies)
	bankingSvc := banking.NewService(bankingRepo, memberSvc, currencies, ledgerClient,
		funds, gateway, notifier, m, d.Logger)
	withdrawSvc := withdraw.NewService(currencies, ledgerClient, funds, provider, m, d.Logger)
	looper := reconcile.NewLooper(currencies, ledgerClient, provider, funds, notifier,
		m, d.Logger, d.Cfg.SweepInterval)

	memberHandler := member.NewHandler(memberSvc)
	fundHandler := fund.NewHandler(funds, ledgerClient)
	bankingHandler := banking.NewHandler(bankingSvc)
	withdrawHandler := withdraw.NewHandler(withdrawSvc)
	notificationHandler := notification.NewHandler(notificationRepo)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes.
	api.Post("/members", memberHandler.Register)
	RegisterCallbackRoutes(api, bankingHandler)

	// Back-office routes.
	RegisterOperatorRoutes(api.Group("", middleware.OperatorID()), bankingHandler)

	// Member-scoped routes.
	protected := api.Group("", middleware.MemberID())
	RegisterFundRoutes(protected, fundHandler)
	RegisterInstrumentRoutes(protected, memberHandler)
	RegisterNotificationRoutes(protected, notificationHandler)

	// Money movement gets the outer idempotency guard and the rate limit on
	// top of the ledger-level business keys.
	money := protected.Group("", middleware.MoneyRateLimit(d.Cache, d.Cfg.RateLimitPerMin))
	if d.Cache != nil {
		money = money.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterBankingRoutes(money, bankingHandler)
	RegisterWithdrawRoutes(money, withdrawHandler)

	return looper, nil
}

// devCurrencies seeds a small configuration so the service is usable without
// a database.
func devCurrencies() currency.Repository {
	repo := currency.NewMemoryRepository()
	repo.AddCurrency(currency.Currency{Symbol: "USD", Name: "US Dollar"})
	repo.AddCrypto(currency.Crypto{
		Currency: currency.Currency{
			Symbol:         "BTC",
			Name:           "Bitcoin",
			WithdrawTariff: commission.Tariff{Min: 1_000, Max: 0, Static: 500, RatePermille: 2, Cap: 0},
		},
		WalletID: "dev-wallet-btc",
	})
	repo.AddGateway(currency.Gateway{
		Name:          "devgw",
		FiatSymbol:    "USD",
		CashinTariff:  commission.Tariff{Min: 100, Max: 1_000_000, Static: 129, RatePermille: 23, Cap: 746},
		CashoutTariff: commission.Tariff{Min: 100, Max: 1_000_000, Static: 129, RatePermille: 23, Cap: 746},
	})
	return repo
}
