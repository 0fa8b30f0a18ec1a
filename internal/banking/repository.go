package banking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no matching banking transaction.
	ErrNotFound = errors.New("banking transaction not found")

	// ErrClosed indicates the transaction already reached a terminal state; a
	// second accept or reject attempt must not fire.
	ErrClosed = errors.New("banking transaction closed")
)

// Repository persists banking transactions. Accept and Reject are guarded
// single-fire transitions: they succeed only while the record is pending.
type Repository interface {
	Create(ctx context.Context, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)

	// FindPendingCashin locates the unique open cash-in by id and gateway
	// transaction id. A replayed callback finds nothing and fails here.
	FindPendingCashin(ctx context.Context, id, providerTxID string) (Transaction, error)

	Accept(ctx context.Context, id, reference string) error
	Reject(ctx context.Context, id, reason string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed banking repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = `id, member_id, banking_id, kind, amount, commission, currency,
        gateway_name, provider_tx_id, error, reference_id, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var createdAt time.Time
	if err := row.Scan(&t.ID, &t.MemberID, &t.BankingID, &t.Kind, &t.Amount, &t.Commission,
		&t.Currency, &t.GatewayName, &t.ProviderTxID, &t.Error, &t.ReferenceID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	t.CreatedAt = createdAt.UTC()
	return t, nil
}

// Create inserts a banking transaction.
func (r *PostgresRepository) Create(ctx context.Context, t Transaction) error {
	_, err := r.db.Exec(ctx, `INSERT INTO banking_transactions
        (id, member_id, banking_id, kind, amount, commission, currency, gateway_name, provider_tx_id, error, reference_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.MemberID, t.BankingID, t.Kind, t.Amount, t.Commission, t.Currency,
		t.GatewayName, t.ProviderTxID, t.Error, t.ReferenceID, t.CreatedAt.UTC())
	return err
}

// Get fetches a banking transaction by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM banking_transactions WHERE id = $1`, id))
}

// FindPendingCashin locates the unique open cash-in matching the callback.
func (r *PostgresRepository) FindPendingCashin(ctx context.Context, id, providerTxID string) (Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx, `SELECT `+txColumns+` FROM banking_transactions
        WHERE id = $1 AND provider_tx_id = $2 AND kind = $3
        AND reference_id IS NULL AND error IS NULL`, id, providerTxID, KindCashin))
}

func (r *PostgresRepository) guardedUpdate(ctx context.Context, query, id string, arg any) error {
	cmd, err := r.db.Exec(ctx, query, id, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrClosed
	}
	return nil
}

// Accept closes the transaction as successful. Fires at most once.
func (r *PostgresRepository) Accept(ctx context.Context, id, reference string) error {
	return r.guardedUpdate(ctx, `UPDATE banking_transactions SET reference_id = $2
        WHERE id = $1 AND reference_id IS NULL AND error IS NULL`, id, reference)
}

// Reject closes the transaction as failed. Fires at most once.
func (r *PostgresRepository) Reject(ctx context.Context, id, reason string) error {
	return r.guardedUpdate(ctx, `UPDATE banking_transactions SET error = $2
        WHERE id = $1 AND reference_id IS NULL AND error IS NULL`, id, reason)
}
