package member

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no such member or instrument.
	ErrNotFound = errors.New("member not found")
	// ErrExists indicates the phone number is already registered.
	ErrExists = errors.New("member exists")
)

// Repository persists members and their payment instruments.
type Repository interface {
	Create(ctx context.Context, m Member) error
	FindByID(ctx context.Context, id string) (Member, error)
	FindByPhone(ctx context.Context, phone string) (Member, error)

	CreateInstrument(ctx context.Context, ins Instrument) error
	GetInstrument(ctx context.Context, id string) (Instrument, error)
	MarkInstrumentVerified(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed member repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new member.
func (r *PostgresRepository) Create(ctx context.Context, m Member) error {
	_, err := r.db.Exec(ctx, `INSERT INTO members (id, phone, pin_hash, created_at)
        VALUES ($1, $2, $3, $4)`, m.ID, m.Phone, m.PINHash, m.CreatedAt.UTC())
	return err
}

// FindByID fetches a member by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Member, error) {
	return r.scanMember(r.db.QueryRow(ctx,
		`SELECT id, phone, pin_hash, created_at FROM members WHERE id = $1`, id))
}

// FindByPhone fetches a member by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Member, error) {
	return r.scanMember(r.db.QueryRow(ctx,
		`SELECT id, phone, pin_hash, created_at FROM members WHERE phone = $1`, phone))
}

func (r *PostgresRepository) scanMember(row pgx.Row) (Member, error) {
	var m Member
	var createdAt time.Time
	if err := row.Scan(&m.ID, &m.Phone, &m.PINHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	m.CreatedAt = createdAt.UTC()
	return m, nil
}

// CreateInstrument inserts a payment instrument record.
func (r *PostgresRepository) CreateInstrument(ctx context.Context, ins Instrument) error {
	_, err := r.db.Exec(ctx, `INSERT INTO instruments (id, member_id, kind, number, verified)
        VALUES ($1, $2, $3, $4, $5)`, ins.ID, ins.MemberID, ins.Kind, ins.Number, ins.Verified)
	return err
}

// GetInstrument fetches a payment instrument by identifier.
func (r *PostgresRepository) GetInstrument(ctx context.Context, id string) (Instrument, error) {
	var ins Instrument
	err := r.db.QueryRow(ctx, `SELECT id, member_id, kind, number, verified
        FROM instruments WHERE id = $1`, id).
		Scan(&ins.ID, &ins.MemberID, &ins.Kind, &ins.Number, &ins.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instrument{}, ErrNotFound
	}
	return ins, err
}

// MarkInstrumentVerified flags an instrument as verified.
func (r *PostgresRepository) MarkInstrumentVerified(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE instruments SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
