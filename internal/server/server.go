package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/card_ledger/internal/command"
	"github.com/congo-pay/card_ledger/internal/config"
	"github.com/congo-pay/card_ledger/internal/routes"
)

// Server wraps the Fiber application and the dispatcher it serves.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	dispatcher *command.Dispatcher
	logger     *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})

	dispatcher, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, dispatcher: dispatcher, logger: logger}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	s.logger.Info("listening", "address", s.cfg.Address())
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and logs the final report.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	for _, sum := range s.dispatcher.Summaries() {
		s.logger.Info("final balance", "account", sum.Name, "line", sum.Line())
	}
	return err
}
