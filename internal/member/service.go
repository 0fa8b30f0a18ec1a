package member

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
)

var (
	// ErrNotOwner indicates the instrument belongs to a different member.
	ErrNotOwner = errors.New("instrument not owned by member")
	// ErrNotVerified indicates the instrument has not passed verification.
	ErrNotVerified = errors.New("instrument not verified")
)

// Service manages member lifecycle. Registration provisions one fund per
// known currency so the accounting mirror exists before any money moves.
type Service struct {
	repo       Repository
	funds      fund.Store
	currencies currency.Repository
}

// NewService creates a member service.
func NewService(repo Repository, funds fund.Store, currencies currency.Repository) *Service {
	return &Service{repo: repo, funds: funds, currencies: currencies}
}

// Register creates a member with a hashed PIN and a zero fund in every
// configured currency.
func (s *Service) Register(ctx context.Context, phone, pin string) (Member, error) {
	if len(pin) < 4 {
		return Member{}, errors.New("PIN must be at least 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return Member{}, err
	}

	m := Member{
		ID:        uuid.NewString(),
		Phone:     phone,
		PINHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Member{}, err
	}

	currencies, err := s.currencies.List(ctx)
	if err != nil {
		return Member{}, err
	}
	for _, c := range currencies {
		if _, err := s.funds.Create(ctx, m.ID, c.Symbol); err != nil {
			return Member{}, err
		}
	}

	return m, nil
}

// AddInstrument stores a payment instrument for later verification.
func (s *Service) AddInstrument(ctx context.Context, memberID, kind, number string) (Instrument, error) {
	ins := Instrument{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Kind:     kind,
		Number:   number,
	}
	if err := s.repo.CreateInstrument(ctx, ins); err != nil {
		return Instrument{}, err
	}
	return ins, nil
}

// VerifyInstrument marks an instrument verified. Verification itself (OTP,
// micro-deposit) happens in an external system; this records its outcome.
func (s *Service) VerifyInstrument(ctx context.Context, instrumentID string) error {
	return s.repo.MarkInstrumentVerified(ctx, instrumentID)
}

// VerifiedInstrument loads an instrument and checks it is owned by the member
// and verified. Used by the banking flows before touching any balance.
func (s *Service) VerifiedInstrument(ctx context.Context, memberID, instrumentID string) (Instrument, error) {
	ins, err := s.repo.GetInstrument(ctx, instrumentID)
	if err != nil {
		return Instrument{}, err
	}
	if ins.MemberID != memberID {
		return Instrument{}, ErrNotOwner
	}
	if !ins.Verified {
		return Instrument{}, ErrNotVerified
	}
	return ins, nil
}
