package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ailedger/internal/core"
	"ailedger/internal/ports"
	"ailedger/internal/storage/record"

	_ "modernc.org/sqlite"
)

const themeKey = "theme"

// SQLiteRepository stores the ledger in an embedded SQLite database.
// Rows keep a position column so the newest-first order survives reloads.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ports.Store         = (*SQLiteRepository)(nil)
	_ ports.HealthChecker = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Ledger schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadTransactions implements ports.TransactionRepository
func (r *SQLiteRepository) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, type, category, note, date, created_ms
		   FROM transactions
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

// SaveTransactions replaces the stored ledger inside a single transaction.
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (id, position, amount, type, category, note, date, created_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		row := record.FromTransaction(t)
		if _, err := stmt.ExecContext(ctx, row.ID, i, row.Amount, row.Type, row.Category, row.Note, row.Date, row.Timestamp); err != nil {
			return fmt.Errorf("insert transaction %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite", "count", len(txs))
	return nil
}

// LoadTheme implements ports.SettingsRepository
func (r *SQLiteRepository) LoadTheme(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, themeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read theme: %w", err)
	}
	return value, nil
}

func (r *SQLiteRepository) SaveTheme(ctx context.Context, theme core.Theme) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		themeKey, string(theme))
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
