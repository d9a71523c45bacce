package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"ailedger/internal/ai"
	"ailedger/internal/backend"
	"ailedger/internal/cache"
	"ailedger/internal/config"
	"ailedger/internal/core"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
	"ailedger/internal/services"
)

// App holds the services a command works with.
type App struct {
	Config      *config.Config
	Logger      *applog.Logger
	Ledger      *services.LedgerService
	Preferences *services.PreferencesService
	Assist      *services.AssistService
	Health      ports.HealthChecker
	Drafts      *cache.LRUCache[core.Draft]

	closers []func() error
}

// NewApp opens the configured backend and broker and loads the ledger.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(logger.Base())

	store, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	app := &App{Config: cfg, Logger: logger, Health: store.Health}
	if store.Cleanup != nil {
		app.closers = append(app.closers, store.Cleanup)
	}

	evts, err := factory.CreateEvents(ctx, bcfg)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("connect %s broker: %w", bcfg.Broker, err)
	}

	opts := []services.LedgerOption{services.WithLogger(logger.Base())}
	if evts.Publisher != nil {
		opts = append(opts, services.WithPublisher(evts.Publisher))
	}
	app.Ledger = services.NewLedgerService(store.Store, opts...)
	// The ledger closes the broker client it publishes on; it must go
	// before the store.
	app.closers = append([]func() error{app.Ledger.Close}, app.closers...)
	app.Ledger.Load(ctx)

	app.Preferences = services.NewPreferencesService(store.Store, logger.Base())
	app.Assist, app.Drafts = newAssist(cfg, logger)
	return app, nil
}

// newAssist builds the AI assistant. A missing API key disables it; every
// draft operation then reports the unavailable message.
func newAssist(cfg *config.Config, logger *applog.Logger) (*services.AssistService, *cache.LRUCache[core.Draft]) {
	drafts := cache.NewLRUCache[core.Draft](cfg.AI.CacheSize, cfg.AI.CacheTTL)

	client, err := ai.NewClient(ai.Config{
		APIKey:        cfg.AI.APIKey,
		BaseURL:       cfg.AI.BaseURL,
		Model:         cfg.AI.Model,
		Timeout:       cfg.AI.Timeout,
		MaxRetries:    cfg.AI.MaxRetries,
		MaxConcurrent: cfg.AI.MaxConcurrent,
	}, logger.Base())
	if err != nil {
		if !errors.Is(err, ai.ErrDisabled) {
			logger.Warn("AI assistant unavailable", applog.FieldError, err)
		}
		return services.NewAssistService(nil, drafts, logger.Base()), drafts
	}

	logger.Info("AI assistant enabled", applog.FieldModel, cfg.AI.Model)
	return services.NewAssistService(client, drafts, logger.Base()), drafts
}

// Close releases the broker and the store, reporting every failure.
func (a *App) Close() error {
	var result *multierror.Error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
