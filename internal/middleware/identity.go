package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	memberIDHeader   = "X-Member-ID"
	operatorIDHeader = "X-Operator-ID"
)

// MemberID extracts the authenticated member id injected by the upstream
// gateway. Authentication itself lives outside this service; the engine only
// needs to know who the money moves for.
func MemberID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(memberIDHeader)
		if id == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing member identity")
		}
		c.Locals("user_id", id)
		return c.Next()
	}
}

// OperatorID guards back-office endpoints the same way MemberID guards member
// ones: the upstream gateway injects the operator identity after
// authenticating it, and money-settling actions refuse to run without one.
func OperatorID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(operatorIDHeader)
		if id == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing operator identity")
		}
		c.Locals("operator_id", id)
		return c.Next()
	}
}
