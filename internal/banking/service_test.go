package banking

import (
	"context"
	"errors"
	"testing"

	"github.com/sable-exchange/sable/internal/commission"
	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
	"github.com/sable-exchange/sable/internal/ledger"
	"github.com/sable-exchange/sable/internal/logging"
	"github.com/sable-exchange/sable/internal/member"
)

const testCard = "4111111111111111"

type fixture struct {
	svc      *Service
	ledger   ledger.Client
	funds    fund.Store
	gateway  *StaticGateway
	memberID string
	cardID   string
}

// flakyLedger fails the next n Update calls with ErrUnavailable.
type flakyLedger struct {
	ledger.Client
	failures int
}

func (f *flakyLedger) Update(ctx context.Context, in ledger.UpdateInput) (ledger.Balance, error) {
	if f.failures > 0 {
		f.failures--
		return ledger.Balance{}, ledger.ErrUnavailable
	}
	return f.Client.Update(ctx, in)
}

func newFixture(t *testing.T, ledgerClient ledger.Client, balance int64) *fixture {
	t.Helper()
	ctx := context.Background()

	currencies := currency.NewMemoryRepository()
	currencies.AddCurrency(currency.Currency{Symbol: "USD", Name: "US Dollar"})
	currencies.AddGateway(currency.Gateway{
		Name:          "acme",
		FiatSymbol:    "USD",
		CashinTariff:  commission.Tariff{Min: 100, Max: 1_000_000, Static: 129, RatePermille: 23, Cap: 746},
		CashoutTariff: commission.Tariff{Min: 100, Max: 1_000_000, Static: 129, RatePermille: 23, Cap: 746},
	})

	funds := fund.NewMemoryStore()
	members := member.NewService(member.NewMemoryRepository(), funds, currencies)

	m, err := members.Register(ctx, "+243900000001", "4821")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	card, err := members.AddInstrument(ctx, m.ID, member.InstrumentCard, testCard)
	if err != nil {
		t.Fatalf("add instrument: %v", err)
	}
	if err := members.VerifyInstrument(ctx, card.ID); err != nil {
		t.Fatalf("verify instrument: %v", err)
	}

	ledger.SeedBalance(ledgerClient, m.ID, "USD", balance)
	if _, err := funds.WithLock(ctx, m.ID, "USD", func(f *fund.Fund) error {
		f.Total = balance
		return nil
	}); err != nil {
		t.Fatalf("seed fund mirror: %v", err)
	}

	gateway := NewStaticGateway(testCard)
	svc := NewService(NewMemoryRepository(), members, currencies, ledgerClient, funds, gateway,
		nil, nil, logging.Discard())

	return &fixture{
		svc:      svc,
		ledger:   ledgerClient,
		funds:    funds,
		gateway:  gateway,
		memberID: m.ID,
		cardID:   card.ID,
	}
}

func available(t *testing.T, c ledger.Client, userID string) int64 {
	t.Helper()
	balances, err := c.Query(context.Background(), userID, "USD")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return balances["USD"].Available
}

func TestCashinLifecycle(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}
	if !tx.Pending() {
		t.Fatalf("new cashin not pending: %+v", tx)
	}
	if tx.Commission != 175 {
		t.Fatalf("expected commission 175, got %d", tx.Commission)
	}

	verified, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	})
	if err != nil {
		t.Fatalf("verify cashin: %v", err)
	}
	if !verified.Accepted() {
		t.Fatalf("verified cashin not accepted: %+v", verified)
	}

	// amount - commission = 2000 - 175.
	if got := available(t, fx.ledger, fx.memberID); got != 1_825 {
		t.Fatalf("expected available 1825, got %d", got)
	}

	// Replayed callback with the identical pair must fail without crediting.
	if _, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	}); !errors.Is(err, ErrBadTransaction) {
		t.Fatalf("expected bad-transaction on duplicate callback, got %v", err)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 1_825 {
		t.Fatalf("duplicate callback credited again: %d", got)
	}
}

func TestCreateCashinValidation(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	if _, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 50,
	}); !errors.Is(err, ErrBadAmount) {
		t.Fatalf("expected bad-amount below min, got %v", err)
	}

	// 129 + floor(130*23/1000) = 131 swallows the whole 130.
	if _, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 130,
	}); !errors.Is(err, ErrCommissionTooHigh) {
		t.Fatalf("expected commission rejection, got %v", err)
	}
}

func TestVerifyCashinAmountMismatch(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}

	fx.gateway.SetAmount(tx.ProviderTxID, 1_999)

	if _, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	}); !errors.Is(err, ErrBadAmount) {
		t.Fatalf("expected bad-amount, got %v", err)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 0 {
		t.Fatalf("mismatched amount credited: %d", got)
	}
}

func TestVerifyCashinCardMismatch(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}

	if _, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: "4222222222222222",
	}); !errors.Is(err, ErrBadCard) {
		t.Fatalf("expected bad-card, got %v", err)
	}
}

func TestVerifyCashinStaysRetriableAfterLedgerOutage(t *testing.T) {
	flaky := &flakyLedger{Client: ledger.NewInMemory()}
	fx := newFixture(t, flaky, 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}

	flaky.failures = 1
	if _, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	}); !errors.Is(err, ErrAccessError) {
		t.Fatalf("expected access error, got %v", err)
	}

	// The record never left pending, so the same callback succeeds on retry
	// and credits exactly once.
	verified, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	})
	if err != nil {
		t.Fatalf("retry verify: %v", err)
	}
	if !verified.Accepted() {
		t.Fatalf("retried cashin not accepted: %+v", verified)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 1_825 {
		t.Fatalf("expected available 1825 after retry, got %d", got)
	}
}

func TestCashoutScheduleRejectScenario(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 3_001)
	ctx := context.Background()

	// amount 2000, tariff (129, 23 permille, cap 746):
	// commission = min(129 + 46, 746) = 175, debit 2175.
	tx, err := fx.svc.ScheduleCashout(ctx, CashoutInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("schedule cashout: %v", err)
	}
	if tx.Commission != 175 {
		t.Fatalf("expected commission 175, got %d", tx.Commission)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 826 {
		t.Fatalf("expected available 826 after reservation, got %d", got)
	}

	// The mirror carries the reservation as a hold, not a settled debit.
	mirror, err := fx.funds.Get(ctx, fx.memberID, "USD")
	if err != nil {
		t.Fatalf("fund mirror: %v", err)
	}
	if mirror.Total != 3_001 || mirror.Blocked != 2_175 {
		t.Fatalf("fund mirror after schedule: total %d blocked %d, want 3001/2175",
			mirror.Total, mirror.Blocked)
	}

	// Reject refunds the principal only; the commission is retained.
	rejected, err := fx.svc.RejectCashout(ctx, tx.ID, "operator declined")
	if err != nil {
		t.Fatalf("reject cashout: %v", err)
	}
	if !rejected.Rejected() {
		t.Fatalf("cashout not rejected: %+v", rejected)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 2_826 {
		t.Fatalf("expected available 2826 after refund, got %d", got)
	}

	mirror, err = fx.funds.Get(ctx, fx.memberID, "USD")
	if err != nil {
		t.Fatalf("fund mirror: %v", err)
	}
	if mirror.Total != 2_826 || mirror.Blocked != 0 {
		t.Fatalf("fund mirror after reject: total %d blocked %d, want 2826/0",
			mirror.Total, mirror.Blocked)
	}
}

func TestCashoutTransitionsSingleFire(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 10_000)
	ctx := context.Background()

	tx, err := fx.svc.ScheduleCashout(ctx, CashoutInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if _, err := fx.svc.AcceptCashout(ctx, tx.ID, "ref-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	after := available(t, fx.ledger, fx.memberID)

	// The accept settles the mirror hold.
	mirror, err := fx.funds.Get(ctx, fx.memberID, "USD")
	if err != nil {
		t.Fatalf("fund mirror: %v", err)
	}
	if mirror.Total != 10_000-2_175 || mirror.Blocked != 0 {
		t.Fatalf("fund mirror after accept: total %d blocked %d, want 7825/0",
			mirror.Total, mirror.Blocked)
	}

	if _, err := fx.svc.AcceptCashout(ctx, tx.ID, "ref-2"); !errors.Is(err, ErrClosed) {
		t.Fatalf("second accept: expected closed, got %v", err)
	}
	if _, err := fx.svc.RejectCashout(ctx, tx.ID, "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("reject after accept: expected closed, got %v", err)
	}
	if got := available(t, fx.ledger, fx.memberID); got != after {
		t.Fatalf("closed transitions moved balance: %d != %d", got, after)
	}
}

func TestCashoutInsufficientBalance(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 2_000)
	ctx := context.Background()

	// 2000 + 175 commission exceeds 2000.
	if _, err := fx.svc.ScheduleCashout(ctx, CashoutInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	}); !errors.Is(err, ErrNotEnoughBalance) {
		t.Fatalf("expected not-enough-balance, got %v", err)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 2_000 {
		t.Fatalf("failed schedule moved balance: %d", got)
	}
}

func TestCashoutScheduleIsIdempotent(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 10_000)
	ctx := context.Background()

	in := CashoutInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID,
		Amount: 2_000, BusinessID: "retry-1",
	}
	first, err := fx.svc.ScheduleCashout(ctx, in)
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	second, err := fx.svc.ScheduleCashout(ctx, in)
	if err != nil {
		t.Fatalf("retried schedule: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry produced a different record: %s vs %s", first.ID, second.ID)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 10_000-2_175 {
		t.Fatalf("retry double-debited: available %d", got)
	}

	mirror, err := fx.funds.Get(ctx, fx.memberID, "USD")
	if err != nil {
		t.Fatalf("fund mirror: %v", err)
	}
	if mirror.Blocked != 2_175 {
		t.Fatalf("retry doubled the mirror hold: blocked %d, want 2175", mirror.Blocked)
	}
}

func TestOperatorTransitionsIgnoreCashin(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}

	// A reject aimed at a cash-in id must not mint a refund for money that
	// was never debited.
	if _, err := fx.svc.RejectCashout(ctx, tx.ID, "wrong button"); !errors.Is(err, ErrBadTransaction) {
		t.Fatalf("reject of cashin: expected bad-transaction, got %v", err)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 0 {
		t.Fatalf("reject of cashin moved balance: %d", got)
	}

	// An accept aimed at a cash-in id must not close it either, or the
	// gateway callback could never credit it.
	if _, err := fx.svc.AcceptCashout(ctx, tx.ID, "ref"); !errors.Is(err, ErrBadTransaction) {
		t.Fatalf("accept of cashin: expected bad-transaction, got %v", err)
	}

	verified, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	})
	if err != nil {
		t.Fatalf("callback after stray operator calls: %v", err)
	}
	if !verified.Accepted() {
		t.Fatalf("cashin not accepted: %+v", verified)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 1_825 {
		t.Fatalf("expected available 1825, got %d", got)
	}
}

func TestVerifyCashinCompletesAfterCreditedCrash(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 0)
	ctx := context.Background()

	tx, err := fx.svc.CreateCashin(ctx, CashinInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("create cashin: %v", err)
	}

	// A prior verification credited the ledger and died before closing the
	// record. The replayed callback must finish the job without crediting
	// again.
	if _, err := fx.ledger.Update(ctx, ledger.UpdateInput{
		UserID: fx.memberID, Asset: "USD", Business: ledger.BusinessCashin,
		BusinessID: tx.ID, Change: 1_825,
	}); err != nil {
		t.Fatalf("stage credit: %v", err)
	}

	verified, err := fx.svc.VerifyCashin(ctx, VerifyCashinInput{
		TransactionID: tx.ID, ProviderTxID: tx.ProviderTxID, Card: testCard,
	})
	if err != nil {
		t.Fatalf("replayed callback: %v", err)
	}
	if !verified.Accepted() {
		t.Fatalf("cashin not accepted on replay: %+v", verified)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 1_825 {
		t.Fatalf("expected available 1825 after replay, got %d", got)
	}
}

func TestRejectCashoutCompletesAfterRefundedCrash(t *testing.T) {
	fx := newFixture(t, ledger.NewInMemory(), 3_001)
	ctx := context.Background()

	tx, err := fx.svc.ScheduleCashout(ctx, CashoutInput{
		MemberID: fx.memberID, Gateway: "acme", InstrumentID: fx.cardID, Amount: 2_000,
	})
	if err != nil {
		t.Fatalf("schedule cashout: %v", err)
	}

	// A prior reject refunded the principal and died before closing the
	// record. Retrying the reject must close it without refunding again.
	if _, err := fx.ledger.Update(ctx, ledger.UpdateInput{
		UserID: fx.memberID, Asset: "USD", Business: ledger.BusinessCashback,
		BusinessID: tx.ID, Change: 2_000,
	}); err != nil {
		t.Fatalf("stage refund: %v", err)
	}

	rejected, err := fx.svc.RejectCashout(ctx, tx.ID, "operator declined")
	if err != nil {
		t.Fatalf("retried reject: %v", err)
	}
	if !rejected.Rejected() {
		t.Fatalf("cashout not rejected on retry: %+v", rejected)
	}
	if got := available(t, fx.ledger, fx.memberID); got != 2_826 {
		t.Fatalf("expected available 2826 after single refund, got %d", got)
	}
}

func TestCardMatches(t *testing.T) {
	cases := []struct {
		registered, reported string
		want                 bool
	}{
		{testCard, testCard, true},
		{testCard, "411111******1111", true},
		{testCard, "422222******1111", false},
		{testCard, "411111******2222", false},
		{testCard, "111", false},
	}
	for _, tc := range cases {
		if got := cardMatches(tc.registered, tc.reported); got != tc.want {
			t.Fatalf("cardMatches(%q, %q) = %v, want %v", tc.registered, tc.reported, got, tc.want)
		}
	}
}
