package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sable-exchange/sable/internal/commission"
	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
	"github.com/sable-exchange/sable/internal/ledger"
	"github.com/sable-exchange/sable/internal/member"
	"github.com/sable-exchange/sable/internal/metrics"
	"github.com/sable-exchange/sable/internal/notification"
)

var (
	// ErrBadAmount indicates the amount is out of the configured range or does
	// not match the gateway-verified amount.
	ErrBadAmount = errors.New("bad-amount")

	// ErrBadCard indicates the card reported by the gateway does not match the
	// registered instrument.
	ErrBadCard = errors.New("bad-card")

	// ErrBadTransaction indicates no open transaction matches the callback.
	// Duplicate and replayed callbacks land here.
	ErrBadTransaction = errors.New("bad-transaction")

	// ErrCommissionTooHigh indicates the fee would consume the whole amount.
	ErrCommissionTooHigh = errors.New("commission-exceeds-amount")

	// ErrNotEnoughBalance indicates available balance cannot cover the amount
	// plus commission.
	ErrNotEnoughBalance = errors.New("not-enough-balance")

	// ErrAccessError wraps ledger or gateway failures with unknown outcome.
	ErrAccessError = errors.New("access-error")
)

// errAlreadyReserved signals a repeated cash-out schedule whose ledger debit
// was applied by a prior attempt.
var errAlreadyReserved = errors.New("already reserved")

// Service drives the cash-in and cash-out state machines. The external ledger
// is the authority for balances; the fund store is the local mirror kept
// consistent under its row lock.
type Service struct {
	repo       Repository
	members    *member.Service
	currencies currency.Repository
	ledger     ledger.Client
	funds      fund.Store
	gateway    Gateway
	notifier   notification.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService constructs a banking service.
func NewService(repo Repository, members *member.Service, currencies currency.Repository,
	ledgerClient ledger.Client, funds fund.Store, gateway Gateway,
	notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		members:    members,
		currencies: currencies,
		ledger:     ledgerClient,
		funds:      funds,
		gateway:    gateway,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
	}
}

// CashinInput captures a fiat deposit request.
type CashinInput struct {
	MemberID     string
	Gateway      string
	InstrumentID string
	Amount       int64
}

// CreateCashin validates the request, opens a gateway transaction and
// persists the pending record. No ledger effect until verification.
func (s *Service) CreateCashin(ctx context.Context, in CashinInput) (Transaction, error) {
	gw, err := s.currencies.GetGateway(ctx, in.Gateway)
	if err != nil {
		return Transaction{}, err
	}
	if !gw.CashinTariff.InRange(in.Amount) {
		return Transaction{}, ErrBadAmount
	}

	ins, err := s.members.VerifiedInstrument(ctx, in.MemberID, in.InstrumentID)
	if err != nil {
		return Transaction{}, err
	}

	fee := commission.Calculate(in.Amount, gw.CashinTariff)
	if fee >= in.Amount {
		return Transaction{}, ErrCommissionTooHigh
	}

	id := uuid.NewString()
	providerTxID, err := s.gateway.CreateTransaction(ctx, id, in.Amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: create transaction: %v", ErrAccessError, err)
	}

	t := Transaction{
		ID:           id,
		MemberID:     in.MemberID,
		BankingID:    ins.ID,
		Kind:         KindCashin,
		Amount:       in.Amount,
		Commission:   fee,
		Currency:     gw.FiatSymbol,
		GatewayName:  gw.Name,
		ProviderTxID: providerTxID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// VerifyCashinInput is the gateway callback payload the engine consumes.
type VerifyCashinInput struct {
	TransactionID string
	ProviderTxID  string
	Card          string
}

// VerifyCashin closes the pending cash-in and credits the ledger with
// amount minus commission. The (id, provider tx id, still-pending) lookup is
// the idempotency guard: a duplicate callback finds nothing. The credit lands
// before the record closes, keyed by the transaction id, so a crash between
// the two is recovered by replaying the callback: the repeat credit is a
// no-op and the acceptance fires. A ledger failure leaves the record pending
// and the callback retriable.
func (s *Service) VerifyCashin(ctx context.Context, in VerifyCashinInput) (Transaction, error) {
	t, err := s.repo.FindPendingCashin(ctx, in.TransactionID, in.ProviderTxID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Transaction{}, ErrBadTransaction
		}
		return Transaction{}, err
	}

	ins, err := s.members.VerifiedInstrument(ctx, t.MemberID, t.BankingID)
	if err != nil {
		return Transaction{}, err
	}
	if !cardMatches(ins.Number, in.Card) {
		return Transaction{}, ErrBadCard
	}

	res, err := s.gateway.VerifyTransaction(ctx, t.ProviderTxID)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: verify transaction: %v", ErrAccessError, err)
	}
	if res.Amount != t.Amount {
		return Transaction{}, ErrBadAmount
	}
	if !cardMatches(ins.Number, res.Card) {
		return Transaction{}, ErrBadCard
	}

	net := t.Amount - t.Commission
	_, err = s.ledger.Update(ctx, ledger.UpdateInput{
		UserID:     t.MemberID,
		Asset:      t.Currency,
		Business:   ledger.BusinessCashin,
		BusinessID: t.ID,
		Change:     net,
		Detail:     "cashin " + t.GatewayName,
	})
	switch {
	case err == nil:
		s.metrics.ObserveUpdate(ledger.BusinessCashin, "applied")
	case errors.Is(err, ledger.ErrRepeatUpdate):
		// A prior attempt credited and died before closing the record; the
		// acceptance below finishes the job.
		s.metrics.ObserveUpdate(ledger.BusinessCashin, "repeat")
	default:
		s.metrics.ObserveUpdate(ledger.BusinessCashin, "error")
		return Transaction{}, fmt.Errorf("%w: credit: %v", ErrAccessError, err)
	}

	if err := s.repo.Accept(ctx, t.ID, res.Reference); err != nil {
		if errors.Is(err, ErrClosed) {
			return Transaction{}, ErrBadTransaction
		}
		return Transaction{}, err
	}

	if _, err := s.funds.WithLock(ctx, t.MemberID, t.Currency, func(f *fund.Fund) error {
		f.Total += net
		return nil
	}); err != nil {
		// Mirror drift is repaired by reconciliation against the ledger; the
		// authoritative credit already happened.
		s.logger.Error("fund mirror credit failed", "transaction_id", t.ID, "error", err)
	}

	res2, err := s.repo.Get(ctx, t.ID)
	if err != nil {
		return Transaction{}, err
	}
	return res2, nil
}

// CashoutInput captures a fiat withdrawal request. BusinessID is the caller's
// idempotency key; empty means a fresh one is generated.
type CashoutInput struct {
	MemberID     string
	Gateway      string
	InstrumentID string
	Amount       int64
	BusinessID   string
}

// ScheduleCashout reserves amount plus commission on the ledger before the
// pending record is committed, so the reservation survives a crash between
// the two. The fund row lock serializes concurrent schedules per member and
// currency, closing the check-then-debit race. The mirror carries the hold in
// Blocked until the operator settles it, so mirror available tracks ledger
// available through the whole lifecycle.
func (s *Service) ScheduleCashout(ctx context.Context, in CashoutInput) (Transaction, error) {
	gw, err := s.currencies.GetGateway(ctx, in.Gateway)
	if err != nil {
		return Transaction{}, err
	}
	if !gw.CashoutTariff.InRange(in.Amount) {
		return Transaction{}, ErrBadAmount
	}

	ins, err := s.members.VerifiedInstrument(ctx, in.MemberID, in.InstrumentID)
	if err != nil {
		return Transaction{}, err
	}

	fee := commission.Calculate(in.Amount, gw.CashoutTariff)
	gross := in.Amount + fee

	id := in.BusinessID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.funds.WithLock(ctx, in.MemberID, gw.FiatSymbol, func(f *fund.Fund) error {
		if f.Available() < gross {
			return ErrNotEnoughBalance
		}
		_, uerr := s.ledger.Update(ctx, ledger.UpdateInput{
			UserID:     in.MemberID,
			Asset:      gw.FiatSymbol,
			Business:   ledger.BusinessCashout,
			BusinessID: id,
			Change:     -gross,
			Detail:     "cashout " + gw.Name,
		})
		switch {
		case uerr == nil:
			s.metrics.ObserveUpdate(ledger.BusinessCashout, "applied")
		case errors.Is(uerr, ledger.ErrRepeatUpdate):
			// A prior attempt already reserved; the mirror reflects it.
			s.metrics.ObserveUpdate(ledger.BusinessCashout, "repeat")
			return errAlreadyReserved
		case errors.Is(uerr, ledger.ErrBalanceNotEnough):
			return ErrNotEnoughBalance
		default:
			s.metrics.ObserveUpdate(ledger.BusinessCashout, "error")
			return fmt.Errorf("%w: reserve: %v", ErrAccessError, uerr)
		}
		f.Blocked += gross
		return nil
	})
	if err != nil && !errors.Is(err, errAlreadyReserved) {
		return Transaction{}, err
	}

	if existing, getErr := s.repo.Get(ctx, id); getErr == nil {
		return existing, nil
	}

	t := Transaction{
		ID:          id,
		MemberID:    in.MemberID,
		BankingID:   ins.ID,
		Kind:        KindCashout,
		Amount:      in.Amount,
		Commission:  fee,
		Currency:    gw.FiatSymbol,
		GatewayName: gw.Name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		// Money is reserved under this id; the retry path above recovers it.
		s.logger.Error("cashout reserved but record not persisted", "business_id", id, "error", err)
		return Transaction{}, fmt.Errorf("%w: persist cashout: %v", ErrAccessError, err)
	}
	return t, nil
}

// AcceptCashout marks the pending cash-out as paid out by the operator. The
// money was already debited at schedule time, so there is no ledger effect;
// the mirror hold converts into a settled debit.
func (s *Service) AcceptCashout(ctx context.Context, id, reference string) (Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.Kind != KindCashout {
		return Transaction{}, ErrBadTransaction
	}

	if reference == "" {
		reference = uuid.NewString()
	}
	if err := s.repo.Accept(ctx, id, reference); err != nil {
		return Transaction{}, err
	}

	gross := t.Amount + t.Commission
	if _, err := s.funds.WithLock(ctx, t.MemberID, t.Currency, func(f *fund.Fund) error {
		f.Blocked -= gross
		f.Total -= gross
		return nil
	}); err != nil {
		s.logger.Error("fund mirror settlement failed", "transaction_id", t.ID, "error", err)
	}

	s.notify(ctx, notification.Notification{
		MemberID:    t.MemberID,
		Title:       "Cash-out paid",
		Description: fmt.Sprintf("Your %s cash-out of %d has been paid out.", t.Currency, t.Amount),
		Severity:    notification.SeverityInfo,
		Topic:       notification.TopicCashout,
	})
	return s.repo.Get(ctx, id)
}

// RejectCashout closes the pending cash-out and refunds the principal. The
// commission is retained as the cost of processing the attempt. The refund
// lands before the record closes, keyed under the cashback business, so a
// crash between the two is recovered by retrying the reject: the repeat
// refund is a no-op and the rejection fires.
func (s *Service) RejectCashout(ctx context.Context, id, reason string) (Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if t.Kind != KindCashout {
		return Transaction{}, ErrBadTransaction
	}
	if !t.Pending() {
		return Transaction{}, ErrClosed
	}

	refunded := false
	_, err = s.ledger.Update(ctx, ledger.UpdateInput{
		UserID:     t.MemberID,
		Asset:      t.Currency,
		Business:   ledger.BusinessCashback,
		BusinessID: t.ID,
		Change:     t.Amount,
		Detail:     "cashout rejected: " + reason,
	})
	switch {
	case err == nil:
		refunded = true
		s.metrics.ObserveUpdate(ledger.BusinessCashback, "applied")
	case errors.Is(err, ledger.ErrRepeatUpdate):
		// A prior reject refunded and died before closing the record.
		s.metrics.ObserveUpdate(ledger.BusinessCashback, "repeat")
	default:
		s.metrics.ObserveUpdate(ledger.BusinessCashback, "error")
		return Transaction{}, fmt.Errorf("%w: refund: %v", ErrAccessError, err)
	}

	if err := s.repo.Reject(ctx, id, reason); err != nil {
		if refunded && errors.Is(err, ErrClosed) {
			// Lost a race with a concurrent accept after the refund applied.
			// Needs an operator correction; the cashback key pins the amount.
			s.logger.Error("refund applied but cashout no longer pending",
				"transaction_id", t.ID)
		}
		return Transaction{}, err
	}

	gross := t.Amount + t.Commission
	if _, err := s.funds.WithLock(ctx, t.MemberID, t.Currency, func(f *fund.Fund) error {
		f.Blocked -= gross
		f.Total -= t.Commission
		return nil
	}); err != nil {
		s.logger.Error("fund mirror refund failed", "transaction_id", t.ID, "error", err)
	}

	s.notify(ctx, notification.Notification{
		MemberID:    t.MemberID,
		Title:       "Cash-out rejected",
		Description: fmt.Sprintf("Your %s cash-out of %d was rejected: %s. The amount has been refunded.", t.Currency, t.Amount, reason),
		Severity:    notification.SeverityWarning,
		Topic:       notification.TopicCashout,
	})

	return s.repo.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Warn("notification not delivered", "member_id", n.MemberID, "error", err)
	}
}

// cardMatches cross-checks the card reported by the gateway against the
// registered instrument. The reported number may be masked in the middle;
// leading digits before the mask and the last four must agree.
func cardMatches(registered, reported string) bool {
	if len(registered) < 4 || len(reported) < 4 {
		return false
	}
	if registered[len(registered)-4:] != reported[len(reported)-4:] {
		return false
	}
	for i := 0; i < len(registered) && i < len(reported); i++ {
		c := reported[i]
		if c < '0' || c > '9' {
			break
		}
		if registered[i] != c {
			return false
		}
	}
	return true
}
