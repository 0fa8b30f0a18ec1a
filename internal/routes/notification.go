package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/notification"
)

// RegisterNotificationRoutes wires the notification inbox.
func RegisterNotificationRoutes(r fiber.Router, h *notification.Handler) {
	r.Get("/notifications", h.List)
	r.Post("/notifications/:id/read", h.MarkRead)
}
