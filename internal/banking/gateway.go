package banking

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// VerifyResult is the gateway's view of a completed payment.
type VerifyResult struct {
	Amount    int64
	Reference string
	Card      string
}

// Gateway is the connector to an external fiat payment processor. Only the
// two calls the engine needs are modelled.
type Gateway interface {
	// CreateTransaction opens a provider-side transaction and returns its id.
	CreateTransaction(ctx context.Context, batchID string, amount int64) (string, error)

	// VerifyTransaction fetches the settled amount, bank reference and the
	// card used for a provider transaction.
	VerifyTransaction(ctx context.Context, providerTxID string) (VerifyResult, error)
}

// StaticGateway simulates a payment processor: created transactions settle
// for the requested amount against a configurable card.
type StaticGateway struct {
	mu      sync.Mutex
	Card    string
	pending map[string]int64
}

// NewStaticGateway constructs the simulator.
func NewStaticGateway(card string) *StaticGateway {
	return &StaticGateway{Card: card, pending: make(map[string]int64)}
}

// CreateTransaction records the intent and returns a synthetic id.
func (g *StaticGateway) CreateTransaction(_ context.Context, _ string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := uuid.NewString()
	g.pending[id] = amount
	return id, nil
}

// VerifyTransaction reports the recorded amount with a synthetic reference.
func (g *StaticGateway) VerifyTransaction(_ context.Context, providerTxID string) (VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.pending[providerTxID]
	if !ok {
		return VerifyResult{}, ErrNotFound
	}
	return VerifyResult{Amount: amount, Reference: uuid.NewString(), Card: g.Card}, nil
}

// SetAmount overrides the settled amount for a provider transaction, letting
// tests simulate an amount mismatch.
func (g *StaticGateway) SetAmount(providerTxID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[providerTxID] = amount
}
