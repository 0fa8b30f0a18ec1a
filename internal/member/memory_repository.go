package member

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu          sync.RWMutex
	members     map[string]Member
	byPhone     map[string]string
	instruments map[string]Instrument
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		members:     make(map[string]Member),
		byPhone:     make(map[string]string),
		instruments: make(map[string]Instrument),
	}
}

func (r *memoryRepository) Create(_ context.Context, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[m.Phone]; exists {
		return ErrExists
	}
	r.members[m.ID] = m
	r.byPhone[m.Phone] = m.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Member{}, ErrNotFound
	}
	return r.members[id], nil
}

func (r *memoryRepository) CreateInstrument(_ context.Context, ins Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruments[ins.ID] = ins
	return nil
}

func (r *memoryRepository) GetInstrument(_ context.Context, id string) (Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ins, ok := r.instruments[id]
	if !ok {
		return Instrument{}, ErrNotFound
	}
	return ins, nil
}

func (r *memoryRepository) MarkInstrumentVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ins, ok := r.instruments[id]
	if !ok {
		return ErrNotFound
	}
	ins.Verified = true
	r.instruments[id] = ins
	return nil
}
