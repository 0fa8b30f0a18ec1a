package banking

import "time"

// Kind discriminates the banking transaction variants.
type Kind string

// Banking transaction kinds.
const (
	KindCashin  Kind = "cashin"
	KindCashout Kind = "cashout"
)

// Transaction is a fiat money movement through a payment gateway. Cashin and
// Cashout share this record; Kind carries the variant. State is derived from
// the nullable fields, never stored as a separate enum:
//
//	pending  = Error == nil && ReferenceID == nil
//	accepted = ReferenceID != nil
//	rejected = Error != nil
//
// Accepted and rejected are terminal and mutually exclusive.
type Transaction struct {
	ID           string
	MemberID     string
	BankingID    string // verified payment instrument used
	Kind         Kind
	Amount       int64 // pre-commission, smallest currency unit
	Commission   int64
	Currency     string
	GatewayName  string
	ProviderTxID string // gateway-side id, cash-in only
	Error        *string
	ReferenceID  *string
	CreatedAt    time.Time
}

// Pending reports whether the transaction is still open.
func (t Transaction) Pending() bool {
	return t.Error == nil && t.ReferenceID == nil
}

// Accepted reports whether the transaction reached its terminal success state.
func (t Transaction) Accepted() bool {
	return t.ReferenceID != nil
}

// Rejected reports whether the transaction reached its terminal failure state.
func (t Transaction) Rejected() bool {
	return t.Error != nil
}
