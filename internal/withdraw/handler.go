package withdraw

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/ledger"
)

// Handler exposes the crypto withdrawal endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a withdraw handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type scheduleRequest struct {
	Currency    string `json:"currency"`
	BusinessUID string `json:"business_uid"`
	Address     string `json:"address"`
	Amount      int64  `json:"amount"`
}

// Schedule submits an on-chain withdrawal for the caller.
func (h *Handler) Schedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	r, err := h.service.Schedule(c.UserContext(), Input{
		MemberID:    uid,
		Currency:    req.Currency,
		BusinessUID: req.BusinessUID,
		Address:     req.Address,
		Amount:      req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBadAmount),
			errors.Is(err, ErrBadAddress),
			errors.Is(err, ErrBadBusinessUID),
			errors.Is(err, ErrNotEnoughBalance):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrAlreadySubmitted):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, currency.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "unknown currency")
		case errors.Is(err, ledger.ErrUnavailable):
			return fiber.NewError(http.StatusBadGateway, "access-error")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"business_uid": r.BusinessUID,
		"currency":     r.Currency,
		"amount":       r.Amount,
		"commission":   r.Commission,
	})
}
