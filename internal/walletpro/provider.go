package walletpro

import (
	"context"
	"time"
)

// Deposit statuses reported by the wallet provider.
const (
	StatusConfirmed = "confirmed"
	StatusOrphan    = "orphan"
	StatusPartial   = "partial"
)

// Quote is the provider's validation verdict for a withdrawal intent. Each
// flag is reported independently.
type Quote struct {
	AmountValid           bool
	AddressValid          bool
	BusinessUIDValid      bool
	BusinessUIDDuplicated bool
	GrossAmount           int64
}

// Deposit is one on-chain deposit visible to the provider. UserID is empty
// for administrative deposits that cannot be attributed to a member.
type Deposit struct {
	ID                string
	UserID            string
	NetAmount         int64
	Confirmed         bool
	ConfirmationsLeft int
	Status            string
	Error             string
	SeenAt            time.Time
}

// WithdrawRequest carries a withdrawal intent to the provider. BusinessUID is
// the caller-supplied idempotency key, unique per intent.
type WithdrawRequest struct {
	WalletID    string
	UserID      string
	BusinessUID string
	Address     string
	Amount      int64
}

// Provider is the contract with the external crypto wallet service.
type Provider interface {
	// QuoteWithdraw validates a withdrawal intent without side effects.
	QuoteWithdraw(ctx context.Context, req WithdrawRequest) (Quote, error)

	// ScheduleWithdraw submits the on-chain withdrawal.
	ScheduleWithdraw(ctx context.Context, req WithdrawRequest) error

	// Deposits pages through deposits for a wallet strictly after the given
	// time, ascending, all users. An empty page terminates iteration.
	Deposits(ctx context.Context, walletID string, after time.Time, page int) ([]Deposit, error)
}
