package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/card_ledger/internal/config"
	"github.com/congo-pay/card_ledger/internal/logging"
)

func newTestApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()
	app := fiber.New()
	cfg := config.Config{
		AppEnv:         "test",
		JournalStream:  "card_ledger:journal",
		IdempotencyTTL: time.Minute,
	}
	if _, err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	app := fiber.New()
	cfg := config.Config{AppEnv: "production", JournalStream: "s"}
	if _, err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err == nil {
		t.Fatalf("expected error without database in production")
	}
}

func TestCommandEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := do(t, app, fiber.MethodPost, "/api/v1/commands", `{"command":"Add Greg 4111111111111111 $1000"}`)
	if status != fiber.StatusOK {
		t.Fatalf("add: expected 200 got %d (%s)", status, body)
	}

	status, body = do(t, app, fiber.MethodPost, "/api/v1/commands", `{"commands":["Charge Greg $800","Charge Greg $1800","Add Karla 1234567890123 $500","Nonsense"]}`)
	if status != fiber.StatusOK {
		t.Fatalf("batch: expected 200 got %d (%s)", status, body)
	}
	var batch struct {
		Outcomes []struct {
			Status int    `json:"status"`
			Error  string `json:"error"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(body), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(batch.Outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(batch.Outcomes))
	}
	wantStatus := []int{0, 1, 1, 1}
	for i, out := range batch.Outcomes {
		if out.Status != wantStatus[i] {
			t.Fatalf("outcome %d: expected status %d got %d (%s)", i, wantStatus[i], out.Status, out.Error)
		}
	}

	status, body = do(t, app, fiber.MethodPost, "/api/v1/commands", `{"command":"Charge Greg"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("malformed: expected 400 got %d (%s)", status, body)
	}

	status, body = do(t, app, fiber.MethodGet, "/api/v1/report", "")
	if status != fiber.StatusOK || body != "Greg: $800\nKarla: error\n" {
		t.Fatalf("unexpected report %d %q", status, body)
	}
}

func TestAccountEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/cards", `{"card_number":"4111111111111111","limit":"$1000"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("add card: expected 201 got %d (%s)", status, body)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/cards", `{"card_number":"5555555555554444","limit":"$2000"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("add second card: expected 201 got %d", status)
	}

	status, body = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/charges", `{"amount":"$300","card_number":"4111111111111111"}`)
	if status != fiber.StatusOK {
		t.Fatalf("explicit charge: expected 200 got %d (%s)", status, body)
	}
	if strings.Contains(body, "4111111111111111") {
		t.Fatalf("response leaked card number: %s", body)
	}

	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/charges", `{"amount":"$5000"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("over limit: expected 422 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/credits", `{"amount":"$50"}`)
	if status != fiber.StatusOK {
		t.Fatalf("credit: expected 200 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/credits", `{"amount":"$50","card_number":"NOT A REAL CARD"}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("unknown card: expected 404 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Nobody/charges", `{"amount":"$1"}`)
	if status != fiber.StatusNotFound {
		t.Fatalf("unknown account: expected 404 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/charges", `{}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("missing amount: expected 400 got %d", status)
	}
	status, _ = do(t, app, fiber.MethodPost, "/api/v1/accounts/Karla/cards", `{"card_number":"1234567890123","limit":"$500"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("invalid card: expected 422 got %d", status)
	}

	status, body = do(t, app, fiber.MethodGet, "/api/v1/accounts/Greg", "")
	if status != fiber.StatusOK {
		t.Fatalf("get account: expected 200 got %d", status)
	}
	var summary struct {
		Balance int64  `json:"balance"`
		Cards   int    `json:"cards"`
		Line    string `json:"line"`
	}
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Balance != -50 || summary.Cards != 2 || summary.Line != "Greg: $-50" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/accounts/Nobody", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("missing account: expected 404 got %d", status)
	}

	status, body = do(t, app, fiber.MethodGet, "/api/v1/accounts", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"name":"Karla"`) {
		t.Fatalf("list accounts: %d %s", status, body)
	}
}

func TestHealthAndPing(t *testing.T) {
	app := newTestApp(t, nil)
	status, body := do(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"postgres":"disabled"`) {
		t.Fatalf("healthz: %d %s", status, body)
	}
	status, body = do(t, app, fiber.MethodGet, "/api/v1/ping", "", "X-Request-ID", "req-1")
	if status != fiber.StatusOK || !strings.Contains(body, `"request_id":"req-1"`) {
		t.Fatalf("ping: %d %s", status, body)
	}
}

func TestJournalAndIdempotencyWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := newTestApp(t, cache)

	do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/cards", `{"card_number":"4111111111111111","limit":"$1000"}`)
	for i := 0; i < 2; i++ {
		status, body := do(t, app, fiber.MethodPost, "/api/v1/accounts/Greg/charges", `{"amount":"$100"}`, "Idempotency-Key", "charge-1")
		if status != fiber.StatusOK {
			t.Fatalf("charge %d: expected 200 got %d (%s)", i, status, body)
		}
	}

	_, body := do(t, app, fiber.MethodGet, "/api/v1/report", "")
	if body != "Greg: $100\n" {
		t.Fatalf("retried charge applied twice: %q", body)
	}

	status, body := do(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK || !strings.Contains(body, `"redis":"ok"`) {
		t.Fatalf("healthz with redis: %d %s", status, body)
	}

	msgs, err := cache.XRange(context.Background(), "card_ledger:journal", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(msgs))
	}
	if msgs[0].Values["card_mask"] != "411111******1111" {
		t.Fatalf("unexpected journal entry %v", msgs[0].Values)
	}
}
