package fund

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-exchange/sable/internal/ledger"
)

// Handler exposes balance queries. The ledger is authoritative; the local
// fund mirror is returned alongside it so drift is visible to operators.
type Handler struct {
	funds  Store
	ledger ledger.Client
}

// NewHandler constructs a fund handler.
func NewHandler(funds Store, ledgerClient ledger.Client) *Handler {
	return &Handler{funds: funds, ledger: ledgerClient}
}

// GetFund returns the caller's balance in one currency.
func (h *Handler) GetFund(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	symbol := c.Params("currency")

	f, err := h.funds.Get(c.UserContext(), uid, symbol)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	balances, err := h.ledger.Query(c.UserContext(), uid, symbol)
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, "access-error")
	}
	b := balances[symbol]

	return c.JSON(fiber.Map{
		"currency":         symbol,
		"available":        b.Available,
		"freeze":           b.Freeze,
		"mirror_total":     f.Total,
		"mirror_blocked":   f.Blocked,
		"mirror_available": f.Available(),
	})
}

// History returns the caller's ledger movements for one currency.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	symbol := c.Params("currency")

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	records, total, err := h.ledger.History(c.UserContext(), ledger.HistoryQuery{
		UserID: uid,
		Asset:  symbol,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, "access-error")
	}

	items := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		items = append(items, fiber.Map{
			"asset":       r.Asset,
			"business":    r.Business,
			"business_id": r.BusinessID,
			"change":      r.Change,
			"detail":      r.Detail,
			"time":        r.Time,
		})
	}
	return c.JSON(fiber.Map{"total": total, "items": items})
}
