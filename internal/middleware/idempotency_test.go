package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/card_ledger/internal/logging"
)

func setupTestApp(t *testing.T, cfg IdempotencyConfig) (*fiber.App, *int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, cfg, logging.Discard()))

	var calls int64
	app.Post("/accounts/:name/charges", func(c *fiber.Ctx) error {
		n := atomic.AddInt64(&calls, 1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"calls": n})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, &calls, cleanup
}

func post(t *testing.T, app *fiber.App, path, key, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload), resp.Header.Get(replayedHeader)
}

func TestIdempotencyRequiresHeaderWhenConfigured(t *testing.T) {
	app, _, cleanup := setupTestApp(t, IdempotencyConfig{TTL: time.Minute, RequireKey: true})
	defer cleanup()

	status, _, _ := post(t, app, "/accounts/Greg/charges", "", `{"amount":"$10"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyOptionalHeaderPassesThrough(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, IdempotencyConfig{TTL: time.Minute})
	defer cleanup()

	post(t, app, "/accounts/Greg/charges", "", `{"amount":"$10"}`)
	post(t, app, "/accounts/Greg/charges", "", `{"amount":"$10"}`)
	if got := atomic.LoadInt64(calls); got != 2 {
		t.Fatalf("expected handler to run twice without a key, ran %d", got)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, IdempotencyConfig{TTL: time.Minute})
	defer cleanup()

	body := `{"amount":"$800"}`
	status, first, replayed := post(t, app, "/accounts/Greg/charges", "abc123", body)
	if status != fiber.StatusOK || replayed != "" {
		t.Fatalf("unexpected first response %d replayed=%q", status, replayed)
	}

	// Second request should return the cached response without invoking handler again.
	status, second, replayed := post(t, app, "/accounts/Greg/charges", "abc123", body)
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if replayed != "true" {
		t.Fatalf("expected replay header")
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("expected handler to run once, ran %d", got)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, IdempotencyConfig{TTL: time.Minute})
	defer cleanup()

	post(t, app, "/accounts/Greg/charges", "key-1", `{"amount":"$800"}`)
	status, _, _ := post(t, app, "/accounts/Greg/charges", "key-1", `{"amount":"$900"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("expected handler to run once, ran %d", got)
	}
}

func TestIdempotencyKeysAreScopedByPath(t *testing.T) {
	app, calls, cleanup := setupTestApp(t, IdempotencyConfig{TTL: time.Minute})
	defer cleanup()

	post(t, app, "/accounts/Greg/charges", "shared", `{"amount":"$1"}`)
	post(t, app, "/accounts/Lisa/charges", "shared", `{"amount":"$1"}`)
	if got := atomic.LoadInt64(calls); got != 2 {
		t.Fatalf("expected separate keys per path, handler ran %d", got)
	}
}

func TestCommandRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(CommandRateLimit(cache, 2, logging.Discard()))
	app.Post("/commands", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/report", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 2; i++ {
		if status, _, _ := post(t, app, "/commands", "", "{}"); status != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, status)
		}
	}
	if status, _, _ := post(t, app, "/commands", "", "{}"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, status)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/report", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected reads to bypass the limit, got %d", resp.StatusCode)
	}
}
