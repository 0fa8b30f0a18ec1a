package fund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists funds in PostgreSQL. WithLock relies on
// SELECT ... FOR UPDATE row locking, so two transactions mutating the same
// (member, currency) pair serialize on the database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed fund store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get reads a fund without locking it.
func (s *PostgresStore) Get(ctx context.Context, memberID, currency string) (Fund, error) {
	row := s.db.QueryRow(ctx, `SELECT member_id, currency, total_balance, blocked_balance, created_at
        FROM funds WHERE member_id = $1 AND currency = $2`, memberID, currency)
	return scanFund(row)
}

// Create provisions a zero-balance fund, tolerating an existing row.
func (s *PostgresStore) Create(ctx context.Context, memberID, currency string) (Fund, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO funds (member_id, currency, total_balance, blocked_balance, created_at)
        VALUES ($1, $2, 0, 0, $3) ON CONFLICT (member_id, currency) DO NOTHING`,
		memberID, currency, time.Now().UTC())
	if err != nil {
		return Fund{}, err
	}
	return s.Get(ctx, memberID, currency)
}

// WithLock runs fn against the exclusively locked fund row and commits the
// mutated balances if the invariant still holds.
func (s *PostgresStore) WithLock(ctx context.Context, memberID, currency string, fn func(*Fund) error) (Fund, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Fund{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const lockQuery = `SELECT member_id, currency, total_balance, blocked_balance, created_at
        FROM funds WHERE member_id = $1 AND currency = $2 FOR UPDATE`

	f, err := scanFund(tx.QueryRow(ctx, lockQuery, memberID, currency))
	if errors.Is(err, ErrNotFound) {
		// Lazy creation on first reference, then re-acquire the lock.
		if _, err := tx.Exec(ctx, `INSERT INTO funds (member_id, currency, total_balance, blocked_balance, created_at)
            VALUES ($1, $2, 0, 0, $3) ON CONFLICT (member_id, currency) DO NOTHING`,
			memberID, currency, time.Now().UTC()); err != nil {
			return Fund{}, err
		}
		f, err = scanFund(tx.QueryRow(ctx, lockQuery, memberID, currency))
	}
	if err != nil {
		return Fund{}, err
	}

	if err := fn(&f); err != nil {
		return Fund{}, err
	}
	if !f.valid() {
		return Fund{}, fmt.Errorf("%w: total=%d blocked=%d", ErrInvariant, f.Total, f.Blocked)
	}

	if _, err := tx.Exec(ctx, `UPDATE funds SET total_balance = $1, blocked_balance = $2
        WHERE member_id = $3 AND currency = $4`, f.Total, f.Blocked, memberID, currency); err != nil {
		return Fund{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Fund{}, err
	}
	return f, nil
}

func scanFund(row pgx.Row) (Fund, error) {
	var f Fund
	var createdAt time.Time
	if err := row.Scan(&f.MemberID, &f.Currency, &f.Total, &f.Blocked, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Fund{}, ErrNotFound
		}
		return Fund{}, err
	}
	f.CreatedAt = createdAt.UTC()
	return f, nil
}
