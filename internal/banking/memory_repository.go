package banking

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu  sync.Mutex
	txs map[string]Transaction
}

// NewMemoryRepository constructs an in-memory banking repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{txs: make(map[string]Transaction)}
}

func (r *memoryRepository) Create(_ context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[t.ID] = t
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRepository) FindPendingCashin(_ context.Context, id, providerTxID string) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok || t.Kind != KindCashin || t.ProviderTxID != providerTxID || !t.Pending() {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRepository) Accept(_ context.Context, id, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	if !t.Pending() {
		return ErrClosed
	}
	t.ReferenceID = &reference
	r.txs[id] = t
	return nil
}

func (r *memoryRepository) Reject(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	if !t.Pending() {
		return ErrClosed
	}
	t.Error = &reason
	r.txs[id] = t
	return nil
}
