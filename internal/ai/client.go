// Package ai drafts ledger transactions from free text, receipt photos and
// PDF receipts using an OpenAI compatible chat completion endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"ailedger/internal/core"
	applog "ailedger/internal/log"
)

const (
	// DefaultBaseURL is the OpenAI compatible endpoint of the Gemini API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.5-flash"
)

var (
	ErrDisabled        = errors.New("ai assistant disabled: no api key")
	ErrEmptyReply      = errors.New("model returned no choices")
	ErrMalformedReply  = errors.New("model reply is not valid JSON")
	ErrInvalidImage    = errors.New("invalid image data")
	ErrInvalidDocument = errors.New("invalid PDF document")
)

// Config holds model endpoint settings.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration // per attempt
	MaxRetries    int
	MaxConcurrent int64
	RetryBackoff  time.Duration // first retry delay, doubled per attempt
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Model:         DefaultModel,
		Timeout:       30 * time.Second,
		MaxRetries:    2,
		MaxConcurrent: 4,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Client implements ports.DraftParser.
type Client struct {
	api    *openai.Client
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time
}

// NewClient returns ErrDisabled when no API key is configured.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{}

	return &Client{
		api:    openai.NewClientWithConfig(oc),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger.With(applog.FieldComponent, applog.ComponentAI, applog.FieldModel, cfg.Model),
		now:    time.Now,
	}, nil
}

// ParseText drafts a transaction from a free-text description.
func (c *Client) ParseText(ctx context.Context, text string) (core.Draft, error) {
	return c.draft(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: textPrompt(text),
	})
}

// ParseDocument drafts a transaction from text extracted out of a receipt PDF.
func (c *Client) ParseDocument(ctx context.Context, text string) (core.Draft, error) {
	return c.draft(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: documentPrompt(text),
	})
}

// ParseImage drafts a transaction from a receipt photo. An empty mimeType
// is sniffed from the bytes.
func (c *Client) ParseImage(ctx context.Context, image []byte, mimeType string) (core.Draft, error) {
	if len(image) == 0 {
		return core.Draft{}, ErrInvalidImage
	}
	if mimeType == "" {
		mimeType = DetectMIME(image)
	}
	return c.draft(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(image, mimeType),
					Detail: openai.ImageURLDetailAuto,
				},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: imagePrompt(),
			},
		},
	})
}

func (c *Client) draft(ctx context.Context, msg openai.ChatCompletionMessage) (core.Draft, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{msg},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: transactionSchema(),
			},
		},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return core.Draft{}, err
	}
	return ParseReply(content, core.Today(c.now()))
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", ErrEmptyReply
			}
			c.logger.DebugContext(ctx, "Chat completion succeeded",
				"attempt", attempt+1,
				applog.FieldDuration, time.Since(start).Milliseconds())
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		c.logger.WarnContext(ctx, "Chat completion failed, retrying",
			"attempt", attempt+1,
			applog.FieldError, err)
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

// retryable reports whether err is worth another attempt: rate limiting,
// server errors and transport failures are; other client errors are not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
