// Package postgres stores the ledger in PostgreSQL through a pgx pool, so
// the API and the mirror worker can share one database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ailedger/internal/core"
	"ailedger/internal/ports"
	"ailedger/internal/storage/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
    id         TEXT PRIMARY KEY,
    position   INTEGER NOT NULL,
    amount     NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    type       TEXT NOT NULL CHECK (type IN ('EXPENSE', 'INCOME')),
    category   TEXT NOT NULL,
    note       TEXT NOT NULL,
    date       DATE NOT NULL,
    created_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_transactions_position_idx ON ledger_transactions (position);
CREATE TABLE IF NOT EXISTS ledger_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Parameters are passed as text and cast server side.
const insertTransaction = `
INSERT INTO ledger_transactions (id, position, amount, type, category, note, date, created_ms)
VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7::text::date, $8)`

const themeKey = "theme"

type Repository struct {
	pool *pgxpool.Pool
}

var (
	_ ports.Store         = (*Repository)(nil)
	_ ports.HealthChecker = (*Repository)(nil)
)

// New connects to databaseURL and creates the schema if it is missing.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, amount::text, type, category, note, to_char(date, 'YYYY-MM-DD'), created_ms
		  FROM ledger_transactions
		 ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var row record.Row
		if err := rows.Scan(&row.ID, &row.Amount, &row.Type, &row.Category, &row.Note, &row.Date, &row.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := row.Transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// SaveTransactions replaces the ledger in one database transaction using a
// single batch round trip for the inserts.
func (r *Repository) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	if len(txs) > 0 {
		batch := &pgx.Batch{}
		for i, t := range txs {
			row := record.FromTransaction(t)
			batch.Queue(insertTransaction, row.ID, i, row.Amount, row.Type, row.Category, row.Note, row.Date, row.Timestamp)
		}
		results := tx.SendBatch(ctx, batch)
		for range txs {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert transaction: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.DebugContext(ctx, "Ledger saved to Postgres", "count", len(txs))
	return nil
}

func (r *Repository) LoadTheme(ctx context.Context) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM ledger_settings WHERE key = $1`, themeKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read theme: %w", err)
	}
	return value, nil
}

func (r *Repository) SaveTheme(ctx context.Context, theme core.Theme) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ledger_settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		themeKey, string(theme))
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
