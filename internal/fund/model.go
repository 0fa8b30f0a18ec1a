package fund

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no fund row exists for the member and currency.
	ErrNotFound = errors.New("fund not found")

	// ErrInvariant indicates a mutation left the fund with blocked < 0 or
	// blocked > total. The surrounding transaction is aborted; the invariant
	// must never be partially committed.
	ErrInvariant = errors.New("fund invariant violated")
)

// Fund is the local accounting mirror of a member's balance in one currency.
// Amounts are integers in the currency's smallest unit. Blocked carries
// scheduled cash-out reservations until the operator settles them, so Total
// only drops once money actually leaves. Invariant:
// 0 <= Blocked <= Total at all times.
type Fund struct {
	MemberID  string
	Currency  string
	Total     int64
	Blocked   int64
	CreatedAt time.Time
}

// Available returns the spendable part of the balance.
func (f Fund) Available() int64 {
	return f.Total - f.Blocked
}

func (f Fund) valid() bool {
	return f.Blocked >= 0 && f.Blocked <= f.Total
}
