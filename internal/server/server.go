package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sable-exchange/sable/internal/config"
	"github.com/sable-exchange/sable/internal/reconcile"
	"github.com/sable-exchange/sable/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	looper *reconcile.Looper
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	looper, err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, looper: looper}, nil
}

// Looper exposes the reconciliation looper for main to run and stop.
func (s *Server) Looper() *reconcile.Looper {
	return s.looper
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
