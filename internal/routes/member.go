package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/member"
)

// RegisterInstrumentRoutes wires payment instrument management.
func RegisterInstrumentRoutes(r fiber.Router, h *member.Handler) {
	r.Post("/instruments", h.AddInstrument)
	r.Post("/instruments/:id/verify", h.VerifyInstrument)
}
