// Package adapters decorates storage backends.
package adapters

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ailedger/internal/core"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
)

// ErrNoHealthCheck is returned by Ping when the wrapped store cannot be probed.
var ErrNoHealthCheck = errors.New("backend does not support health checks")

// InstrumentedStore logs every call to the wrapped store with its duration.
// Failures are logged at error level, successes at debug.
type InstrumentedStore struct {
	store   ports.Store
	backend string
	logger  *slog.Logger
}

// Ensure interface conformance
var (
	_ ports.Store         = (*InstrumentedStore)(nil)
	_ ports.HealthChecker = (*InstrumentedStore)(nil)
)

func NewInstrumentedStore(store ports.Store, backend string, logger *slog.Logger) *InstrumentedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstrumentedStore{
		store:   store,
		backend: backend,
		logger:  logger.With(applog.FieldComponent, applog.ComponentStorage, applog.FieldBackend, backend),
	}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStore) Unwrap() ports.Store {
	return s.store
}

func (s *InstrumentedStore) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	start := time.Now()
	txs, err := s.store.LoadTransactions(ctx)
	s.observe(ctx, applog.OpLoad, start, err, applog.FieldCount, len(txs))
	return txs, err
}

func (s *InstrumentedStore) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	start := time.Now()
	err := s.store.SaveTransactions(ctx, txs)
	s.observe(ctx, applog.OpUpdate, start, err, applog.FieldCount, len(txs))
	return err
}

func (s *InstrumentedStore) LoadTheme(ctx context.Context) (string, error) {
	start := time.Now()
	theme, err := s.store.LoadTheme(ctx)
	s.observe(ctx, applog.OpRead, start, err, applog.FieldTheme, theme)
	return theme, err
}

func (s *InstrumentedStore) SaveTheme(ctx context.Context, theme core.Theme) error {
	start := time.Now()
	err := s.store.SaveTheme(ctx, theme)
	s.observe(ctx, applog.OpUpdate, start, err, applog.FieldTheme, string(theme))
	return err
}

// Ping forwards to the wrapped store when it implements ports.HealthChecker.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	hc, ok := s.store.(ports.HealthChecker)
	if !ok {
		return ErrNoHealthCheck
	}
	if err := hc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Backend health check failed", applog.FieldError, err)
		return err
	}
	return nil
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, start time.Time, err error, extra ...any) {
	fields := append([]any{
		applog.FieldOperation, op,
		applog.FieldDuration, time.Since(start).Milliseconds(),
	}, extra...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Storage operation failed", append(fields, applog.FieldError, err)...)
		return
	}
	s.logger.DebugContext(ctx, "Storage operation completed", fields...)
}
