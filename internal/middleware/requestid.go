package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a trace identifier. An incoming
// X-Request-ID is honored when it parses as a UUID, so gateway-assigned ids
// survive the hop; anything else is replaced rather than echoed.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals(requestIDHeader, id)
		return c.Next()
	}
}
