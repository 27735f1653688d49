package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/card_ledger/internal/command"
	"github.com/congo-pay/card_ledger/internal/config"
	"github.com/congo-pay/card_ledger/internal/journal"
	"github.com/congo-pay/card_ledger/internal/ledger"
	"github.com/congo-pay/card_ledger/internal/middleware"
)

const commandsPerMinute = 600

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// dispatcher so callers can inspect the ledger the routes mutate.
func Setup(app *fiber.App, d Deps) (*command.Dispatcher, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.CommandRateLimit(d.Cache, commandsPerMinute, d.Logger))
		app.Use(middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{TTL: d.Cfg.IdempotencyTTL}, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	sink, err := journal.Build(context.Background(), d.DB, d.Cache, d.Cfg.JournalStream)
	if err != nil {
		return nil, err
	}
	proc := ledger.New(ledger.WithLogger(d.Logger))
	dispatcher := command.NewDispatcher(proc,
		command.WithLogger(d.Logger),
		command.WithJournal(sink, journal.NewFingerprinter(d.Cfg.JournalPepper)),
	)
	handler := command.NewHandler(dispatcher)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocal).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterCommandRoutes(api, handler)

	return dispatcher, nil
}

// RegisterCommandRoutes wires the ledger endpoints.
func RegisterCommandRoutes(r fiber.Router, h *command.Handler) {
	r.Post("/commands", h.Submit)
	r.Get("/report", h.Report)
	r.Get("/accounts", h.Accounts)
	r.Get("/accounts/:name", h.Account)
	r.Post("/accounts/:name/cards", h.AddCard)
	r.Post("/accounts/:name/charges", h.Charge)
	r.Post("/accounts/:name/credits", h.Credit)
}
