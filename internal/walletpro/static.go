package walletpro

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Static simulates the wallet provider in memory: quotes validate against
// simple rules, scheduled withdrawals are recorded, and deposits are seeded
// by tests or local tooling.
type Static struct {
	mu        sync.Mutex
	pageSize  int
	scheduled map[string]WithdrawRequest // keyed by business uid
	deposits  map[string][]Deposit       // keyed by wallet id
	failNext  error
}

// NewStatic constructs the simulator with the given deposit page size.
func NewStatic(pageSize int) *Static {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Static{
		pageSize:  pageSize,
		scheduled: make(map[string]WithdrawRequest),
		deposits:  make(map[string][]Deposit),
	}
}

// QuoteWithdraw validates the intent. Amounts must be positive, addresses
// non-empty, business uids non-empty and unused.
func (s *Static) QuoteWithdraw(_ context.Context, req WithdrawRequest) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, duplicated := s.scheduled[req.BusinessUID]
	return Quote{
		AmountValid:           req.Amount > 0,
		AddressValid:          req.Address != "",
		BusinessUIDValid:      req.BusinessUID != "",
		BusinessUIDDuplicated: duplicated,
		GrossAmount:           req.Amount,
	}, nil
}

// ScheduleWithdraw records the withdrawal as submitted.
func (s *Static) ScheduleWithdraw(_ context.Context, req WithdrawRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.scheduled[req.BusinessUID] = req
	return nil
}

// Deposits returns the requested page of deposits after the cutoff, ascending.
func (s *Static) Deposits(_ context.Context, walletID string, after time.Time, page int) ([]Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Deposit
	for _, d := range s.deposits[walletID] {
		if d.SeenAt.After(after) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SeenAt.Before(matched[j].SeenAt) })

	start := page * s.pageSize
	if start >= len(matched) {
		return nil, nil
	}
	end := start + s.pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// AddDeposit seeds a deposit for the wallet.
func (s *Static) AddDeposit(walletID string, d Deposit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[walletID] = append(s.deposits[walletID], d)
}

// FailNextSchedule makes the next ScheduleWithdraw call return err.
func (s *Static) FailNextSchedule(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Scheduled reports whether a business uid was submitted.
func (s *Static) Scheduled(businessUID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scheduled[businessUID]
	return ok
}
