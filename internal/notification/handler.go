package notification

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the caller's notifications.
type Handler struct {
	repo Repository
}

// NewHandler constructs a notification handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns the caller's notifications, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 50)

	items, err := h.repo.ListByMember(c.UserContext(), uid, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"items": items})
}

// MarkRead flags one notification as read.
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	if err := h.repo.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
