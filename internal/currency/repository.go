package currency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested currency or gateway is not configured.
var ErrNotFound = errors.New("currency not found")

// Repository serves currency and gateway configuration and owns checkpoint
// persistence for cryptos.
type Repository interface {
	List(ctx context.Context) ([]Currency, error)
	Get(ctx context.Context, symbol string) (Currency, error)
	ListCryptos(ctx context.Context) ([]Crypto, error)
	GetGateway(ctx context.Context, name string) (Gateway, error)

	// AdvanceCheckpoint moves a crypto's reconciliation checkpoint forward.
	// The checkpoint is monotonic; a timestamp at or before the stored one is
	// ignored.
	AdvanceCheckpoint(ctx context.Context, symbol string, to time.Time) error
}

// PostgresRepository stores currencies and gateways in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed currency repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const currencyColumns = `symbol, name,
        deposit_min, deposit_max, deposit_static, deposit_rate, deposit_cap,
        withdraw_min, withdraw_max, withdraw_static, withdraw_rate, withdraw_cap`

func scanCurrency(row pgx.Row) (Currency, error) {
	var c Currency
	d := &c.DepositTariff
	w := &c.WithdrawTariff
	err := row.Scan(&c.Symbol, &c.Name,
		&d.Min, &d.Max, &d.Static, &d.RatePermille, &d.Cap,
		&w.Min, &w.Max, &w.Static, &w.RatePermille, &w.Cap)
	if errors.Is(err, pgx.ErrNoRows) {
		return Currency{}, ErrNotFound
	}
	return c, err
}

// List returns all configured currencies.
func (r *PostgresRepository) List(ctx context.Context) ([]Currency, error) {
	rows, err := r.db.Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get fetches one currency by symbol.
func (r *PostgresRepository) Get(ctx context.Context, symbol string) (Currency, error) {
	return scanCurrency(r.db.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE symbol = $1`, symbol))
}

// ListCryptos returns the wallet-backed currencies with their checkpoints.
func (r *PostgresRepository) ListCryptos(ctx context.Context) ([]Crypto, error) {
	rows, err := r.db.Query(ctx, `SELECT `+currencyColumns+`, wallet_id, wallet_latest_sync
        FROM currencies WHERE wallet_id IS NOT NULL ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Crypto
	for rows.Next() {
		var c Crypto
		d := &c.DepositTariff
		w := &c.WithdrawTariff
		var latestSync time.Time
		if err := rows.Scan(&c.Symbol, &c.Name,
			&d.Min, &d.Max, &d.Static, &d.RatePermille, &d.Cap,
			&w.Min, &w.Max, &w.Static, &w.RatePermille, &w.Cap,
			&c.WalletID, &latestSync); err != nil {
			return nil, err
		}
		c.LatestSync = latestSync.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetGateway fetches a payment gateway configuration by name.
func (r *PostgresRepository) GetGateway(ctx context.Context, name string) (Gateway, error) {
	var g Gateway
	ci := &g.CashinTariff
	co := &g.CashoutTariff
	err := r.db.QueryRow(ctx, `SELECT name, fiat_symbol,
        cashin_min, cashin_max, cashin_static, cashin_rate, cashin_cap,
        cashout_min, cashout_max, cashout_static, cashout_rate, cashout_cap
        FROM gateways WHERE name = $1`, name).Scan(&g.Name, &g.FiatSymbol,
		&ci.Min, &ci.Max, &ci.Static, &ci.RatePermille, &ci.Cap,
		&co.Min, &co.Max, &co.Static, &co.RatePermille, &co.Cap)
	if errors.Is(err, pgx.ErrNoRows) {
		return Gateway{}, ErrNotFound
	}
	return g, err
}

// AdvanceCheckpoint persists a strictly newer checkpoint for the crypto.
func (r *PostgresRepository) AdvanceCheckpoint(ctx context.Context, symbol string, to time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE currencies SET wallet_latest_sync = $1
        WHERE symbol = $2 AND wallet_latest_sync < $1`, to.UTC(), symbol)
	return err
}
