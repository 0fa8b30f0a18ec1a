package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryClient struct {
	mu       sync.RWMutex
	balances map[string]Balance // userID|asset
	applied  map[string]Balance // asset|business|businessID -> balance at first application
	records  []Record
}

// NewInMemory creates a concurrency-safe in-memory ledger client. It enforces
// the same idempotency and balance semantics as the real service and is used
// in unit tests and local development.
func NewInMemory() Client {
	return &inMemoryClient{
		balances: make(map[string]Balance),
		applied:  make(map[string]Balance),
	}
}

func balanceKey(userID, asset string) string {
	return userID + "|" + asset
}

func updateKey(in UpdateInput) string {
	return in.Asset + "|" + in.Business + "|" + in.BusinessID
}

func (c *inMemoryClient) Query(_ context.Context, userID string, assets ...string) (map[string]Balance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Balance, len(assets))
	for _, asset := range assets {
		out[asset] = c.balances[balanceKey(userID, asset)]
	}
	return out, nil
}

func (c *inMemoryClient) Update(_ context.Context, in UpdateInput) (Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, exists := c.applied[updateKey(in)]; exists {
		return prior, ErrRepeatUpdate
	}

	bal := c.balances[balanceKey(in.UserID, in.Asset)]
	if bal.Available+in.Change < 0 {
		return Balance{}, ErrBalanceNotEnough
	}

	bal.Available += in.Change
	c.balances[balanceKey(in.UserID, in.Asset)] = bal
	c.applied[updateKey(in)] = bal
	c.records = append(c.records, Record{
		UserID:     in.UserID,
		Asset:      in.Asset,
		Business:   in.Business,
		BusinessID: in.BusinessID,
		Change:     in.Change,
		Detail:     in.Detail,
		Time:       time.Now().UTC(),
	})

	return bal, nil
}

func (c *inMemoryClient) History(_ context.Context, q HistoryQuery) ([]Record, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []Record
	for _, r := range c.records {
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		if q.Asset != "" && r.Asset != q.Asset {
			continue
		}
		if q.Business != "" && r.Business != q.Business {
			continue
		}
		if !q.From.IsZero() && r.Time.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.Time.After(q.To) {
			continue
		}
		matched = append(matched, r)
	}

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}
