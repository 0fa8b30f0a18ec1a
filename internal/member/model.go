package member

import "time"

// Instrument kinds accepted by the banking flows.
const (
	InstrumentCard    = "card"
	InstrumentAccount = "account"
)

// Member is a registered exchange client.
type Member struct {
	ID        string
	Phone     string
	PINHash   []byte
	CreatedAt time.Time
}

// Instrument is a verified payment endpoint (bank card or account) owned by a
// member. Cash-in and cash-out only accept instruments that are both owned by
// the requester and verified.
type Instrument struct {
	ID       string
	MemberID string
	Kind     string
	Number   string
	Verified bool
}
