package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/withdraw"
)

// RegisterWithdrawRoutes wires the crypto withdrawal endpoint.
func RegisterWithdrawRoutes(r fiber.Router, h *withdraw.Handler) {
	r.Post("/withdraws", h.Schedule)
}
