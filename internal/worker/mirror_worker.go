// Package worker runs the background process that keeps the Google Sheets
// mirror of the ledger up to date.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ailedger/internal/events"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
	"ailedger/internal/services"
)

const stopTimeout = 30 * time.Second

// MirrorWorker drives a MirrorProcessor from two sources: ledger events
// delivered by the broker and the processor's own periodic ticker.
type MirrorWorker struct {
	processor *services.MirrorProcessor
	consumer  ports.EventConsumer // nil when no broker is configured
	logger    *slog.Logger
}

func NewMirrorWorker(processor *services.MirrorProcessor, consumer ports.EventConsumer, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{
		processor: processor,
		consumer:  consumer,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (w *MirrorWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		return w.processor.Stop(stopCtx)
	})

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.Consume(gctx, w.handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.InfoContext(ctx, "No event broker configured, mirroring on the interval only")
	}

	err := g.Wait()
	stats := w.processor.Stats()
	w.logger.InfoContext(ctx, "Mirror worker stopped",
		"mirrors", stats.Mirrors,
		"skipped", stats.Skipped,
		"failures", stats.Failures)
	return err
}

func (w *MirrorWorker) handle(ctx context.Context, evt *events.LedgerEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		applog.FieldEventKind, evt.Kind,
		applog.FieldTransactionID, evt.TransactionID,
		applog.FieldVersion, evt.Version)
	return w.processor.HandleEvent(ctx, evt)
}
