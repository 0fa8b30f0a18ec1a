package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBalanceNotEnough occurs when a debit would drive the available balance
	// negative. The ledger applies no state change in that case.
	ErrBalanceNotEnough = errors.New("balance not enough")

	// ErrRepeatUpdate indicates the (asset, business, business id) key was already
	// applied. Callers treat it as a successful no-op and must not retry with a
	// fresh key.
	ErrRepeatUpdate = errors.New("repeat update")

	// ErrUnavailable covers network failures, timeouts and 5xx responses. The
	// outcome of the attempted update is unknown; callers must not advance any
	// local checkpoint and must rely on the idempotency key to retry safely.
	ErrUnavailable = errors.New("ledger unavailable")
)

// Business codes keying money movements. Together with the asset and a
// per-operation business id they form the ledger's at-most-once update key.
const (
	BusinessCashin   = "cashin"
	BusinessCashout  = "cashout"
	BusinessCashback = "cashback"
	BusinessWithdraw = "withdraw"
	BusinessDeposit  = "deposit"
)

// Balance holds the available and frozen amounts for one asset, in the
// asset's smallest unit.
type Balance struct {
	Available int64
	Freeze    int64
}

// UpdateInput describes a signed balance delta to apply exactly once.
type UpdateInput struct {
	UserID     string
	Asset      string
	Business   string
	BusinessID string
	Change     int64
	Detail     string
}

// Record is one applied ledger movement.
type Record struct {
	UserID     string
	Asset      string
	Business   string
	BusinessID string
	Change     int64
	Detail     string
	Time       time.Time
}

// HistoryQuery filters paginated ledger records. Zero values mean "any".
type HistoryQuery struct {
	UserID   string
	Asset    string
	Business string
	From     time.Time
	To       time.Time
	Offset   int
	Limit    int
}

// Client is the contract with the external balance ledger, the authoritative
// store of per-user per-asset balances.
type Client interface {
	// Query reads balances for the given assets. No side effects.
	Query(ctx context.Context, userID string, assets ...string) (map[string]Balance, error)

	// Update applies a signed delta keyed by (asset, business, business id) at
	// most once. A duplicate key returns the balance as of first application
	// together with ErrRepeatUpdate. A debit below zero available returns
	// ErrBalanceNotEnough with no state change.
	Update(ctx context.Context, input UpdateInput) (Balance, error)

	// History returns matching records plus the total match count.
	History(ctx context.Context, q HistoryQuery) ([]Record, int, error)
}
