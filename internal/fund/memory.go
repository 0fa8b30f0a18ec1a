package fund

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	funds map[string]Fund
	locks map[string]*sync.Mutex
}

// NewMemoryStore constructs an in-memory fund store for tests and local
// development. Per-key mutexes give the same serialization WithLock gets from
// row locks in Postgres.
func NewMemoryStore() Store {
	return &memoryStore{
		funds: make(map[string]Fund),
		locks: make(map[string]*sync.Mutex),
	}
}

func fundKey(memberID, currency string) string {
	return memberID + "|" + currency
}

func (s *memoryStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

func (s *memoryStore) Get(_ context.Context, memberID, currency string) (Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.funds[fundKey(memberID, currency)]
	if !ok {
		return Fund{}, ErrNotFound
	}
	return f, nil
}

func (s *memoryStore) Create(_ context.Context, memberID, currency string) (Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fundKey(memberID, currency)
	if f, ok := s.funds[key]; ok {
		return f, nil
	}
	f := Fund{MemberID: memberID, Currency: currency, CreatedAt: time.Now().UTC()}
	s.funds[key] = f
	return f, nil
}

func (s *memoryStore) WithLock(ctx context.Context, memberID, currency string, fn func(*Fund) error) (Fund, error) {
	key := fundKey(memberID, currency)
	lock := s.rowLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	f, ok := s.funds[key]
	if !ok {
		f = Fund{MemberID: memberID, Currency: currency, CreatedAt: time.Now().UTC()}
		s.funds[key] = f
	}
	s.mu.Unlock()

	if err := fn(&f); err != nil {
		return Fund{}, err
	}
	if !f.valid() {
		return Fund{}, fmt.Errorf("%w: total=%d blocked=%d", ErrInvariant, f.Total, f.Blocked)
	}

	s.mu.Lock()
	s.funds[key] = f
	s.mu.Unlock()
	return f, nil
}
