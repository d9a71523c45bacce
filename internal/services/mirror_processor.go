package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ailedger/internal/events"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
)

// MirrorConfig holds configuration for the mirror processor
type MirrorConfig struct {
	// Interval is how often a full mirror runs regardless of events (default: 5m)
	Interval time.Duration

	// Timeout bounds a single mirror pass (default: 1m)
	Timeout time.Duration
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Interval: 5 * time.Minute,
		Timeout:  time.Minute,
	}
}

// MirrorStats summarizes processor activity.
type MirrorStats struct {
	Mirrors    int64     `json:"mirrors"`
	Skipped    int64     `json:"skipped"`
	Failures   int64     `json:"failures"`
	LastMirror time.Time `json:"last_mirror"`
	LastCount  int       `json:"last_count"`
}

// MirrorProcessor copies the ledger from the primary store to a secondary
// one, typically a Google Sheet. Events trigger a copy; a ticker repeats it
// so missed events are eventually repaired.
type MirrorProcessor struct {
	source ports.TransactionRepository
	target ports.TransactionRepository
	config MirrorConfig
	logger *slog.Logger
	now    func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// passMu serializes mirror passes; statsMu guards stats.
	passMu  sync.Mutex
	statsMu sync.Mutex
	stats   MirrorStats
}

func NewMirrorProcessor(source, target ports.TransactionRepository, config MirrorConfig, logger *slog.Logger) *MirrorProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultMirrorConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultMirrorConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorProcessor{
		source: source,
		target: target,
		config: config,
		logger: logger.With(applog.FieldComponent, applog.ComponentWorker),
		now:    time.Now,
	}
}

// Start begins the periodic loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Mirror processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Mirror processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Mirror immediately on startup
	p.mirrorLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mirrorLogged(ctx)
		}
	}
}

func (p *MirrorProcessor) mirrorLogged(ctx context.Context) {
	if err := p.MirrorNow(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Periodic mirror failed", applog.FieldError, err)
	}
}

// HandleEvent mirrors the ledger in response to a change event. Events
// produced before the last successful read of the source are already
// reflected in the target and are skipped.
func (p *MirrorProcessor) HandleEvent(ctx context.Context, evt *events.LedgerEvent) error {
	p.statsMu.Lock()
	last := p.stats.LastMirror
	p.statsMu.Unlock()

	if !last.IsZero() && evt.Timestamp.Before(last) {
		p.statsMu.Lock()
		p.stats.Skipped++
		p.statsMu.Unlock()
		p.logger.DebugContext(ctx, "Skipping stale event",
			applog.FieldEventKind, string(evt.Kind),
			applog.FieldVersion, evt.Version)
		return nil
	}

	p.logger.InfoContext(ctx, "Processing ledger event",
		applog.FieldEventKind, string(evt.Kind),
		applog.FieldTransactionID, evt.TransactionID,
		applog.FieldVersion, evt.Version)
	return p.MirrorNow(ctx)
}

// MirrorNow overwrites the target with the current source ledger.
func (p *MirrorProcessor) MirrorNow(ctx context.Context) error {
	p.passMu.Lock()
	defer p.passMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	readAt := p.now()
	txs, err := p.source.LoadTransactions(ctx)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("load source ledger: %w", err)
	}
	if err := p.target.SaveTransactions(ctx, txs); err != nil {
		p.recordFailure()
		return fmt.Errorf("write mirror: %w", err)
	}

	p.statsMu.Lock()
	p.stats.Mirrors++
	p.stats.LastMirror = readAt
	p.stats.LastCount = len(txs)
	p.statsMu.Unlock()

	p.logger.InfoContext(ctx, "Ledger mirrored",
		applog.FieldOperation, applog.OpMirror,
		applog.FieldCount, len(txs))
	return nil
}

func (p *MirrorProcessor) recordFailure() {
	p.statsMu.Lock()
	p.stats.Failures++
	p.statsMu.Unlock()
}

// Stats returns current processor statistics
func (p *MirrorProcessor) Stats() MirrorStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
