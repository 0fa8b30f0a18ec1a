package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sable-exchange/sable/internal/commission"
	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
	"github.com/sable-exchange/sable/internal/ledger"
	"github.com/sable-exchange/sable/internal/metrics"
	"github.com/sable-exchange/sable/internal/walletpro"
)

var (
	// ErrBadAmount indicates the amount failed the provider quote or the
	// currency's withdraw tariff range.
	ErrBadAmount = errors.New("bad-amount")

	// ErrBadAddress indicates the provider rejected the destination address.
	ErrBadAddress = errors.New("bad-address")

	// ErrBadBusinessUID indicates the idempotency key is malformed or missing.
	ErrBadBusinessUID = errors.New("bad-business-uid")

	// ErrAlreadySubmitted indicates the business uid was already scheduled
	// with the provider.
	ErrAlreadySubmitted = errors.New("already-submitted")

	// ErrNotEnoughBalance indicates available balance cannot cover amount plus
	// commission.
	ErrNotEnoughBalance = errors.New("not-enough-balance")
)

// Service schedules on-chain withdrawals: quote, reserve, submit in that
// order. The reservation is keyed by the caller's business uid so a retried
// request cannot debit twice.
type Service struct {
	currencies currency.Repository
	ledger     ledger.Client
	funds      fund.Store
	provider   walletpro.Provider
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService constructs a withdraw service.
func NewService(currencies currency.Repository, ledgerClient ledger.Client,
	funds fund.Store, provider walletpro.Provider,
	m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		currencies: currencies,
		ledger:     ledgerClient,
		funds:      funds,
		provider:   provider,
		metrics:    m,
		logger:     logger,
	}
}

// Input is a withdrawal intent. BusinessUID is the caller's idempotency key
// and must be unique per intent.
type Input struct {
	MemberID    string
	Currency    string
	BusinessUID string
	Address     string
	Amount      int64
}

// Receipt describes a scheduled withdrawal.
type Receipt struct {
	BusinessUID string
	Currency    string
	Amount      int64
	Commission  int64
}

// Schedule runs the withdrawal flow. Validation happens before any ledger
// effect; a submit failure after the reservation leaves the money reserved
// and is surfaced as ledger.ErrUnavailable for the caller to retry with the
// same business uid. The reservation is never auto-refunded: releasing it is
// an operator decision once the provider-side outcome is known.
func (s *Service) Schedule(ctx context.Context, in Input) (Receipt, error) {
	crypto, err := s.crypto(ctx, in.Currency)
	if err != nil {
		return Receipt{}, err
	}
	if !crypto.WithdrawTariff.InRange(in.Amount) {
		return Receipt{}, ErrBadAmount
	}

	req := walletpro.WithdrawRequest{
		WalletID:    crypto.WalletID,
		UserID:      in.MemberID,
		BusinessUID: in.BusinessUID,
		Address:     in.Address,
		Amount:      in.Amount,
	}

	quote, err := s.provider.QuoteWithdraw(ctx, req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: quote: %v", ledger.ErrUnavailable, err)
	}
	switch {
	case !quote.AmountValid:
		return Receipt{}, ErrBadAmount
	case !quote.AddressValid:
		return Receipt{}, ErrBadAddress
	case quote.BusinessUIDDuplicated:
		return Receipt{}, ErrAlreadySubmitted
	case !quote.BusinessUIDValid:
		return Receipt{}, ErrBadBusinessUID
	}

	fee := commission.Calculate(in.Amount, crypto.WithdrawTariff)
	gross := in.Amount + fee

	_, err = s.funds.WithLock(ctx, in.MemberID, crypto.Symbol, func(f *fund.Fund) error {
		if f.Available() < gross {
			return ErrNotEnoughBalance
		}
		_, uerr := s.ledger.Update(ctx, ledger.UpdateInput{
			UserID:     in.MemberID,
			Asset:      crypto.Symbol,
			Business:   ledger.BusinessWithdraw,
			BusinessID: in.BusinessUID,
			Change:     -gross,
			Detail:     "withdraw to " + in.Address,
		})
		switch {
		case uerr == nil:
			s.metrics.ObserveUpdate(ledger.BusinessWithdraw, "applied")
		case errors.Is(uerr, ledger.ErrRepeatUpdate):
			// Reserved by a prior attempt that never reached submit; proceed
			// to submit without touching the mirror again.
			s.metrics.ObserveUpdate(ledger.BusinessWithdraw, "repeat")
			return nil
		case errors.Is(uerr, ledger.ErrBalanceNotEnough):
			return ErrNotEnoughBalance
		default:
			s.metrics.ObserveUpdate(ledger.BusinessWithdraw, "error")
			return fmt.Errorf("%w: reserve: %v", ledger.ErrUnavailable, uerr)
		}
		// Unlike a cash-out there is no local pending record to settle later,
		// so the mirror debit is final rather than held in Blocked.
		f.Total -= gross
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	if err := s.provider.ScheduleWithdraw(ctx, req); err != nil {
		s.logger.Error("withdraw reserved but not submitted",
			"business_uid", in.BusinessUID, "currency", crypto.Symbol, "error", err)
		return Receipt{}, fmt.Errorf("%w: submit: %v", ledger.ErrUnavailable, err)
	}

	return Receipt{
		BusinessUID: in.BusinessUID,
		Currency:    crypto.Symbol,
		Amount:      in.Amount,
		Commission:  fee,
	}, nil
}

func (s *Service) crypto(ctx context.Context, symbol string) (currency.Crypto, error) {
	cryptos, err := s.currencies.ListCryptos(ctx)
	if err != nil {
		return currency.Crypto{}, err
	}
	for _, c := range cryptos {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return currency.Crypto{}, currency.ErrNotFound
}
