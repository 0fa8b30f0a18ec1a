package member

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes member registration and instrument management.
type Handler struct {
	service *Service
}

// NewHandler constructs a member handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// Register creates a member and provisions a fund per configured currency.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	m, err := h.service.Register(c.UserContext(), req.Phone, req.PIN)
	if err != nil {
		if errors.Is(err, ErrExists) {
			return fiber.NewError(http.StatusConflict, "phone already registered")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"member_id":  m.ID,
		"phone":      m.Phone,
		"created_at": m.CreatedAt,
	})
}

type instrumentRequest struct {
	Kind   string `json:"kind"`
	Number string `json:"number"`
}

// AddInstrument registers a payment instrument for the caller.
func (h *Handler) AddInstrument(c *fiber.Ctx) error {
	var req instrumentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Kind != InstrumentCard && req.Kind != InstrumentAccount {
		return fiber.NewError(http.StatusBadRequest, "unknown instrument kind")
	}
	uid, _ := c.Locals("user_id").(string)

	ins, err := h.service.AddInstrument(c.UserContext(), uid, req.Kind, req.Number)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"instrument_id": ins.ID,
		"kind":          ins.Kind,
		"verified":      ins.Verified,
	})
}

// VerifyInstrument records a successful external verification of an
// instrument owned by the caller.
func (h *Handler) VerifyInstrument(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	id := c.Params("id")

	// Ownership check before the state change; a foreign instrument reads as
	// absent to the caller.
	_, err := h.service.VerifiedInstrument(c.UserContext(), uid, id)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"verified": true})
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "instrument not found")
	case errors.Is(err, ErrNotVerified):
		// fall through to mark it verified
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	if err := h.service.VerifyInstrument(c.UserContext(), id); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"verified": true})
}
