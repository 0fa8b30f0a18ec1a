package banking

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/member"
)

// Handler exposes the cash-in and cash-out endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a banking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionResponse struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Amount      int64  `json:"amount"`
	Commission  int64  `json:"commission"`
	Currency    string `json:"currency"`
	Gateway     string `json:"gateway"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toResponse(t Transaction) transactionResponse {
	r := transactionResponse{
		ID:         t.ID,
		Kind:       t.Kind,
		Amount:     t.Amount,
		Commission: t.Commission,
		Currency:   t.Currency,
		Gateway:    t.GatewayName,
		Status:     "pending",
		CreatedAt:  t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	switch {
	case t.Accepted():
		r.Status = "accepted"
		r.ReferenceID = *t.ReferenceID
	case t.Rejected():
		r.Status = "rejected"
		r.Error = *t.Error
	}
	return r
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrBadAmount),
		errors.Is(err, ErrBadCard),
		errors.Is(err, ErrCommissionTooHigh),
		errors.Is(err, ErrNotEnoughBalance):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBadTransaction):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrClosed):
		return fiber.NewError(http.StatusConflict, "transaction already closed")
	case errors.Is(err, ErrNotFound), errors.Is(err, member.ErrNotOwner):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, member.ErrNotVerified):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAccessError):
		return fiber.NewError(http.StatusBadGateway, "upstream access error")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

type cashinRequest struct {
	Gateway      string `json:"gateway"`
	InstrumentID string `json:"instrument_id"`
	Amount       int64  `json:"amount"`
}

// CreateCashin opens a fiat deposit through a payment gateway.
func (h *Handler) CreateCashin(c *fiber.Ctx) error {
	var req cashinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.CreateCashin(c.UserContext(), CashinInput{
		MemberID:     uid,
		Gateway:      req.Gateway,
		InstrumentID: req.InstrumentID,
		Amount:       req.Amount,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(t))
}

type verifyCashinRequest struct {
	TransactionID string `json:"transaction_id"`
	ProviderTxID  string `json:"provider_tx_id"`
	Card          string `json:"card"`
}

// VerifyCashin is the gateway callback endpoint. Safe to replay: a duplicate
// callback is answered with a conflict and no second credit.
func (h *Handler) VerifyCashin(c *fiber.Ctx) error {
	var req verifyCashinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	t, err := h.service.VerifyCashin(c.UserContext(), VerifyCashinInput{
		TransactionID: req.TransactionID,
		ProviderTxID:  req.ProviderTxID,
		Card:          req.Card,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(t))
}

type cashoutRequest struct {
	Gateway      string `json:"gateway"`
	InstrumentID string `json:"instrument_id"`
	Amount       int64  `json:"amount"`
	BusinessID   string `json:"business_id"`
}

// ScheduleCashout reserves funds and opens a pending withdrawal to a card.
func (h *Handler) ScheduleCashout(c *fiber.Ctx) error {
	var req cashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.ScheduleCashout(c.UserContext(), CashoutInput{
		MemberID:     uid,
		Gateway:      req.Gateway,
		InstrumentID: req.InstrumentID,
		Amount:       req.Amount,
		BusinessID:   req.BusinessID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(t))
}

type acceptCashoutRequest struct {
	ReferenceID string `json:"reference_id"`
}

// AcceptCashout marks a pending cash-out as paid by the operator.
func (h *Handler) AcceptCashout(c *fiber.Ctx) error {
	var req acceptCashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	t, err := h.service.AcceptCashout(c.UserContext(), c.Params("id"), req.ReferenceID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(t))
}

type rejectCashoutRequest struct {
	Reason string `json:"reason"`
}

// RejectCashout closes a pending cash-out and refunds the principal.
func (h *Handler) RejectCashout(c *fiber.Ctx) error {
	var req rejectCashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Reason == "" {
		req.Reason = "rejected by operator"
	}

	t, err := h.service.RejectCashout(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(t))
}

// GetTransaction returns one banking transaction owned by the caller.
func (h *Handler) GetTransaction(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.repo.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	if t.MemberID != uid {
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	}
	return c.JSON(toResponse(t))
}
