package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ailedger/internal/adapters"
	"ailedger/internal/amqp"
	applog "ailedger/internal/log"
	"ailedger/internal/nats"
	gsheet "ailedger/internal/sheets/google"
	"ailedger/internal/storage"
	"ailedger/internal/storage/file"
	"ailedger/internal/storage/memory"
	"ailedger/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	root   *slog.Logger // for clients that tag their own component
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
		root:   logger,
	}
}

// CreateBackend implements Factory.CreateBackend. The returned store is
// wrapped so every load and save is logged with its duration.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case FileBackend:
		result, err = f.createFileBackend(config)
	case PostgresBackend:
		result, err = f.createPostgresBackend(ctx, config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	instrumented := adapters.NewInstrumentedStore(result.Store, config.Type.String(), f.logger)
	result.Store = instrumented
	if result.Health != nil {
		result.Health = instrumented
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Health:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store, err := file.NewOS(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file backend: %w", err)
	}

	f.logger.Info("Initialized file backend", "data_directory", dataDir)

	return &BackendResult{
		Store:  store,
		Health: store,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.New(ctx, config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &BackendResult{
		Store:   repo,
		Health:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := f.newSheetsClient(ctx, config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)

	return &BackendResult{
		Store:  cli,
		Health: cli,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(Config) (*BackendResult, error) {
	store := memory.New()

	f.logger.Warn("Initialized memory backend, the ledger will not survive a restart")

	return &BackendResult{
		Store:  store,
		Health: store,
	}, nil
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.validateSheets(); err != nil {
		return nil, err
	}
	cli, err := f.newSheetsClient(ctx, config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets mirror", "sheet", config.GoogleSheetName)

	instrumented := adapters.NewInstrumentedStore(cli, "sheets-mirror", f.logger)
	return &BackendResult{
		Store:  instrumented,
		Health: instrumented,
	}, nil
}

func (f *DefaultFactory) newSheetsClient(ctx context.Context, config Config) (*gsheet.Client, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		SettingsSheet:   config.GoogleSettingsSheet,
		CredentialsJSON: config.GoogleCredentialsJSON,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

// CreateEvents implements Factory.CreateEvents. With no broker configured
// it returns an empty result and no error.
func (f *DefaultFactory) CreateEvents(_ context.Context, config Config) (*EventsResult, error) {
	switch config.Broker {
	case NoBroker, "":
		f.logger.Info("Ledger events disabled")
		return &EventsResult{}, nil

	case AMQPBroker:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.root)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &EventsResult{Publisher: client, Consumer: client, Cleanup: client.Close}, nil

	case NATSBroker:
		client, err := nats.NewClient(config.NATSURL, config.NATSSubject, config.NATSQueue, f.root)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize NATS client: %w", err)
		}
		f.logger.Info("Initialized NATS client",
			"subject", config.NATSSubject,
			"queue", config.NATSQueue)
		return &EventsResult{Publisher: client, Consumer: client, Cleanup: client.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported event broker: %s", config.Broker)
	}
}
