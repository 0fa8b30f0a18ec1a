package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestInMemoryUpdateIsIdempotent(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	SeedBalance(c, "user-1", "BTC", 10_000)

	in := UpdateInput{
		UserID:     "user-1",
		Asset:      "BTC",
		Business:   BusinessWithdraw,
		BusinessID: "biz-1",
		Change:     -4_000,
	}

	bal, err := c.Update(ctx, in)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if bal.Available != 6_000 {
		t.Fatalf("expected available 6000, got %d", bal.Available)
	}

	for i := 0; i < 3; i++ {
		bal, err = c.Update(ctx, in)
		if !errors.Is(err, ErrRepeatUpdate) {
			t.Fatalf("expected repeat update, got %v", err)
		}
		if bal.Available != 6_000 {
			t.Fatalf("repeat returned available %d, want 6000", bal.Available)
		}
	}

	balances, err := c.Query(ctx, "user-1", "BTC")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if balances["BTC"].Available != 6_000 {
		t.Fatalf("delta applied more than once: available=%d", balances["BTC"].Available)
	}
}

func TestInMemoryUpdateRejectsOverdraft(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	SeedBalance(c, "user-1", "USD", 500)

	_, err := c.Update(ctx, UpdateInput{
		UserID:     "user-1",
		Asset:      "USD",
		Business:   BusinessCashout,
		BusinessID: "biz-overdraft",
		Change:     -501,
	})
	if !errors.Is(err, ErrBalanceNotEnough) {
		t.Fatalf("expected balance not enough, got %v", err)
	}

	balances, _ := c.Query(ctx, "user-1", "USD")
	if balances["USD"].Available != 500 {
		t.Fatalf("failed debit mutated balance: %d", balances["USD"].Available)
	}
}

func TestInMemoryConcurrentDebitsSerialize(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	SeedBalance(c, "user-1", "USD", 1_000)

	// Two debits whose sum exceeds the balance: exactly one must succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Update(ctx, UpdateInput{
				UserID:     "user-1",
				Asset:      "USD",
				Business:   BusinessCashout,
				BusinessID: fmt.Sprintf("race-%d", i),
				Change:     -700,
			})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrBalanceNotEnough):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || short != 1 {
		t.Fatalf("expected one success and one shortfall, got ok=%d short=%d", ok, short)
	}

	balances, _ := c.Query(ctx, "user-1", "USD")
	if balances["USD"].Available != 300 {
		t.Fatalf("expected available 300, got %d", balances["USD"].Available)
	}
}

func TestInMemoryHistoryFiltersAndPaginates(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	SeedBalance(c, "user-1", "USD", 10_000)

	for i := 0; i < 5; i++ {
		if _, err := c.Update(ctx, UpdateInput{
			UserID:     "user-1",
			Asset:      "USD",
			Business:   BusinessCashin,
			BusinessID: fmt.Sprintf("in-%d", i),
			Change:     100,
		}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if _, err := c.Update(ctx, UpdateInput{
		UserID:     "user-1",
		Asset:      "USD",
		Business:   BusinessCashout,
		BusinessID: "out-0",
		Change:     -50,
	}); err != nil {
		t.Fatalf("cashout update: %v", err)
	}

	records, total, err := c.History(ctx, HistoryQuery{UserID: "user-1", Business: BusinessCashin, Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records on page, got %d", len(records))
	}
	for _, r := range records {
		if r.Business != BusinessCashin {
			t.Fatalf("business filter leaked record %q", r.Business)
		}
	}
}
