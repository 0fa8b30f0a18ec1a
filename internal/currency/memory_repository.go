package currency

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository implements Repository in memory and exposes seeding
// helpers used by tests and local development.
type MemoryRepository struct {
	mu         sync.RWMutex
	currencies map[string]Currency
	cryptos    map[string]Crypto
	gateways   map[string]Gateway
}

// NewMemoryRepository constructs an empty in-memory currency repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		currencies: make(map[string]Currency),
		cryptos:    make(map[string]Crypto),
		gateways:   make(map[string]Gateway),
	}
}

// AddCurrency seeds a fiat currency.
func (r *MemoryRepository) AddCurrency(c Currency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currencies[c.Symbol] = c
}

// AddCrypto seeds a wallet-backed currency.
func (r *MemoryRepository) AddCrypto(c Crypto) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currencies[c.Symbol] = c.Currency
	r.cryptos[c.Symbol] = c
}

// AddGateway seeds a payment gateway.
func (r *MemoryRepository) AddGateway(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name] = g
}

// List returns all configured currencies.
func (r *MemoryRepository) List(_ context.Context) ([]Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	return out, nil
}

// Get fetches one currency by symbol.
func (r *MemoryRepository) Get(_ context.Context, symbol string) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[symbol]
	if !ok {
		return Currency{}, ErrNotFound
	}
	return c, nil
}

// ListCryptos returns the wallet-backed currencies with their checkpoints.
func (r *MemoryRepository) ListCryptos(_ context.Context) ([]Crypto, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Crypto, 0, len(r.cryptos))
	for _, c := range r.cryptos {
		out = append(out, c)
	}
	return out, nil
}

// GetGateway fetches a payment gateway configuration by name.
func (r *MemoryRepository) GetGateway(_ context.Context, name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[name]
	if !ok {
		return Gateway{}, ErrNotFound
	}
	return g, nil
}

// AdvanceCheckpoint moves a crypto's checkpoint forward, never backward.
func (r *MemoryRepository) AdvanceCheckpoint(_ context.Context, symbol string, to time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cryptos[symbol]
	if !ok {
		return ErrNotFound
	}
	if to.After(c.LatestSync) {
		c.LatestSync = to
		r.cryptos[symbol] = c
	}
	return nil
}

// Checkpoint reads the stored checkpoint, for test assertions.
func (r *MemoryRepository) Checkpoint(symbol string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cryptos[symbol].LatestSync
}
