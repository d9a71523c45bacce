package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"ailedger/internal/events"
	applog "ailedger/internal/log"
)

const connectTimeout = 5 * time.Second

// Client publishes ledger events on a subject and consumes them through a
// queue group, so several mirror workers share the stream.
type Client struct {
	conn    *nats.Conn
	subject string
	queue   string
	logger  *slog.Logger
}

func NewClient(url, subject, queue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(applog.FieldComponent, applog.ComponentEvents, "broker", "nats")

	opts := []nats.Option{
		nats.Name("ailedger"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", applog.FieldError, err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS server", applog.FieldError, err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS server", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}
	return &Client{conn: conn, subject: subject, queue: queue, logger: logger}, nil
}

// Publish sends the event and waits for the server to acknowledge the flush.
func (c *Client) Publish(ctx context.Context, evt *events.LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.conn.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	c.logger.DebugContext(ctx, "Published ledger event",
		applog.FieldEventKind, evt.Kind,
		applog.FieldTransactionID, evt.TransactionID,
		applog.FieldVersion, evt.Version)
	return nil
}

// Consume subscribes to the subject and blocks until ctx is cancelled.
// NATS core delivery is at-most-once, so handler errors are only logged.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *events.LedgerEvent) error) error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		evt, err := events.FromJSON(msg.Data)
		if err != nil {
			c.logger.ErrorContext(ctx, "Dropping malformed ledger event", applog.FieldError, err, "subject", msg.Subject)
			return
		}
		if err := handler(ctx, evt); err != nil {
			c.logger.ErrorContext(ctx, "Failed to handle ledger event",
				applog.FieldError, err,
				applog.FieldEventKind, evt.Kind,
				applog.FieldVersion, evt.Version)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	c.logger.InfoContext(ctx, "Started consuming ledger events", "subject", c.subject, "queue", c.queue)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		c.logger.Warn("Failed to unsubscribe", applog.FieldError, err)
	}
	return ctx.Err()
}

// Close drains pending messages before closing the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}
