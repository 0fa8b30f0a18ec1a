package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestMemberIDGuard(t *testing.T) {
	app := fiber.New()
	app.Post("/cashouts", MemberID(), func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		return c.SendString(uid)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/cashouts", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without member identity, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/cashouts", nil)
	req.Header.Set("X-Member-ID", "m-1")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with member identity, got %d", resp.StatusCode)
	}
}

func TestOperatorIDGuard(t *testing.T) {
	app := fiber.New()
	app.Post("/cashouts/:id/reject", OperatorID(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/cashouts/tx-1/reject", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without operator identity, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/cashouts/tx-1/reject", nil)
	req.Header.Set("X-Operator-ID", "op-1")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with operator identity, got %d", resp.StatusCode)
	}
}
