package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sable-exchange/sable/internal/logging"
)

// newIdempotencyApp wires the guard in front of a cash-out style endpoint.
// The handler is injectable so tests can count invocations and simulate
// failures.
func newIdempotencyApp(t *testing.T, handler fiber.Handler) *fiber.App {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/cashouts", handler)
	app.Get("/transactions/42", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func scheduleRequest(key string) *http.Request {
	req := httptest.NewRequest(fiber.MethodPost, "/cashouts", strings.NewReader(`{"amount":2000}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotencyRequiresKey(t *testing.T) {
	calls := 0
	app := newIdempotencyApp(t, func(c *fiber.Ctx) error {
		calls++
		return c.SendStatus(fiber.StatusCreated)
	})

	resp, err := app.Test(scheduleRequest(""))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.StatusCode)
	}
	if calls != 0 {
		t.Fatalf("handler ran without an idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	app := newIdempotencyApp(t, func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": "tx-1"})
	})

	first, err := app.Test(scheduleRequest("retry-1"))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first.StatusCode != fiber.StatusCreated {
		t.Fatalf("first request status %d", first.StatusCode)
	}
	firstBody, _ := io.ReadAll(first.Body)
	first.Body.Close()

	second, err := app.Test(scheduleRequest("retry-1"))
	if err != nil {
		t.Fatalf("replayed request: %v", err)
	}
	if second.StatusCode != fiber.StatusCreated {
		t.Fatalf("replayed request status %d", second.StatusCode)
	}
	secondBody, _ := io.ReadAll(second.Body)
	second.Body.Close()

	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if string(firstBody) != string(secondBody) {
		t.Fatalf("replay body %q differs from original %q", secondBody, firstBody)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	calls := 0
	app := newIdempotencyApp(t, func(c *fiber.Ctx) error {
		calls++
		if calls == 1 {
			return fiber.NewError(fiber.StatusBadGateway, "ledger unavailable")
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	resp, err := app.Test(scheduleRequest("retry-2"))
	if err != nil {
		t.Fatalf("failing request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502 from failing handler, got %d", resp.StatusCode)
	}

	// The failure was not cached, so the retry reaches the handler and
	// succeeds.
	resp2, err := app.Test(scheduleRequest("retry-2"))
	if err != nil {
		t.Fatalf("retried request: %v", err)
	}
	if resp2.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 on retry, got %d", resp2.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	app := newIdempotencyApp(t, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/transactions/42", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET without key rejected: %d", resp.StatusCode)
	}
}
