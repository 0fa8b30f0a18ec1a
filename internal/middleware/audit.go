package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit logs one line per completed request with timing and whatever
// identity the guards upstream resolved. Health and metrics endpoints are
// exempt to keep the log readable.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if path == "/healthz" || path == "/metrics" {
			return err
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", path),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if id, _ := c.Locals(requestIDHeader).(string); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if uid, _ := c.Locals("user_id").(string); uid != "" {
			attrs = append(attrs, slog.String("member_id", uid))
		}
		if op, _ := c.Locals("operator_id").(string); op != "" {
			attrs = append(attrs, slog.String("operator_id", op))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
