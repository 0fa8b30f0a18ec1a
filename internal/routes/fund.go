package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/fund"
)

// RegisterFundRoutes wires balance query endpoints.
func RegisterFundRoutes(r fiber.Router, h *fund.Handler) {
	r.Get("/funds/:currency", h.GetFund)
	r.Get("/funds/:currency/history", h.History)
}
