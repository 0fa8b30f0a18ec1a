package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/banking"
)

// RegisterBankingRoutes wires member-initiated cash-in/cash-out endpoints.
func RegisterBankingRoutes(r fiber.Router, h *banking.Handler) {
	r.Post("/cashins", h.CreateCashin)
	r.Post("/cashouts", h.ScheduleCashout)
	r.Get("/transactions/:id", h.GetTransaction)
}

// RegisterCallbackRoutes wires the endpoint the payment gateway calls back on.
func RegisterCallbackRoutes(r fiber.Router, h *banking.Handler) {
	r.Post("/cashins/callback", h.VerifyCashin)
}

// RegisterOperatorRoutes wires back-office settlement endpoints. Callers must
// carry an operator identity.
func RegisterOperatorRoutes(r fiber.Router, h *banking.Handler) {
	r.Post("/cashouts/:id/accept", h.AcceptCashout)
	r.Post("/cashouts/:id/reject", h.RejectCashout)
}
