package ports

import (
	"context"

	"ailedger/internal/core"
	"ailedger/internal/events"
)

// Ports for outbound adapters.
type (
	// TransactionRepository persists the whole ledger, newest first.
	TransactionRepository interface {
		// LoadTransactions returns the stored ledger. A ledger that was never
		// saved yields an empty slice and no error.
		LoadTransactions(ctx context.Context) ([]core.Transaction, error)
		// SaveTransactions overwrites the stored ledger.
		SaveTransactions(ctx context.Context, txs []core.Transaction) error
	}

	// SettingsRepository stores user preferences.
	SettingsRepository interface {
		// LoadTheme returns the raw stored theme, or "" when unset.
		LoadTheme(ctx context.Context) (string, error)
		SaveTheme(ctx context.Context, theme core.Theme) error
	}

	// Store is what every storage backend provides.
	Store interface {
		TransactionRepository
		SettingsRepository
	}

	// HealthChecker is implemented by backends that can report readiness.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}

	EventPublisher interface {
		Publish(ctx context.Context, evt *events.LedgerEvent) error
		Close() error
	}

	// EventConsumer delivers ledger events until ctx is cancelled.
	EventConsumer interface {
		Consume(ctx context.Context, handler func(context.Context, *events.LedgerEvent) error) error
		Close() error
	}

	// DraftParser turns free text or a receipt image into a transaction draft.
	DraftParser interface {
		ParseText(ctx context.Context, text string) (core.Draft, error)
		ParseImage(ctx context.Context, image []byte, mimeType string) (core.Draft, error)
		// ParseDocument handles text extracted from a PDF receipt.
		ParseDocument(ctx context.Context, text string) (core.Draft, error)
	}
)
