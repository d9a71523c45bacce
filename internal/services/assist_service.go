package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"ailedger/internal/ai"
	"ailedger/internal/cache"
	"ailedger/internal/core"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
)

// UnavailableMessage is shown to the user whenever no draft could be produced.
const UnavailableMessage = "智能识别暂不可用，请手动填写"

var ErrAssistUnavailable = errors.New("ai assistant unavailable")

// AssistService turns user input into transaction drafts. It never fails
// loudly: every problem is logged and reported as a nil draft.
type AssistService struct {
	parser ports.DraftParser
	cache  cache.Cache[core.Draft]
	logger *slog.Logger
}

// NewAssistService accepts a nil parser, meaning the assistant is disabled,
// and a nil cache, meaning results are not cached.
func NewAssistService(parser ports.DraftParser, drafts cache.Cache[core.Draft], logger *slog.Logger) *AssistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistService{
		parser: parser,
		cache:  drafts,
		logger: logger.With(applog.FieldComponent, applog.ComponentAI),
	}
}

func (s *AssistService) Enabled() bool {
	return s.parser != nil
}

// FromText drafts a transaction from a description such as "午饭 35".
func (s *AssistService) FromText(ctx context.Context, text string) (*core.Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrAssistUnavailable)
	}
	return s.cached(ctx, "text:"+text, func(ctx context.Context) (core.Draft, error) {
		return s.parser.ParseText(ctx, text)
	})
}

// FromReceipt drafts a transaction from an uploaded receipt, either a photo
// or a PDF. mimeType may be empty; the content is sniffed regardless.
func (s *AssistService) FromReceipt(ctx context.Context, data []byte, mimeType string) (*core.Draft, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrAssistUnavailable)
	}
	if ai.IsPDF(data) {
		return s.FromPDF(ctx, data)
	}
	return s.FromImage(ctx, data, mimeType)
}

func (s *AssistService) FromImage(ctx context.Context, data []byte, mimeType string) (*core.Draft, error) {
	if !ai.IsImage(data) {
		s.logger.WarnContext(ctx, "Upload is not an image", "detected", ai.DetectMIME(data), "declared", mimeType)
		return nil, fmt.Errorf("%w: %v", ErrAssistUnavailable, ai.ErrInvalidImage)
	}
	key := "image:" + strconv.FormatUint(xxh3.Hash(data), 16)
	return s.cached(ctx, key, func(ctx context.Context) (core.Draft, error) {
		img, mime := ai.PrepareImage(data)
		return s.parser.ParseImage(ctx, img, mime)
	})
}

func (s *AssistService) FromPDF(ctx context.Context, data []byte) (*core.Draft, error) {
	text, err := ai.ExtractPDFText(data)
	if err != nil {
		s.logger.WarnContext(ctx, "PDF receipt unreadable", applog.FieldError, err)
		return nil, fmt.Errorf("%w: %v", ErrAssistUnavailable, err)
	}
	key := "pdf:" + strconv.FormatUint(xxh3.HashString(text), 16)
	return s.cached(ctx, key, func(ctx context.Context) (core.Draft, error) {
		return s.parser.ParseDocument(ctx, text)
	})
}

func (s *AssistService) cached(ctx context.Context, key string, parse func(context.Context) (core.Draft, error)) (*core.Draft, error) {
	if s.parser == nil {
		return nil, fmt.Errorf("%w: %v", ErrAssistUnavailable, ai.ErrDisabled)
	}
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return &d, nil
		}
	}

	d, err := parse(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "AI draft failed",
			applog.FieldOperation, applog.OpParse,
			applog.FieldError, err)
		return nil, fmt.Errorf("%w: %v", ErrAssistUnavailable, err)
	}

	if s.cache != nil {
		s.cache.Set(key, d)
	}
	s.logger.InfoContext(ctx, "AI draft produced",
		applog.FieldAmount, d.Amount.String(),
		applog.FieldCategory, string(d.Category),
		applog.FieldType, string(d.Type))
	return &d, nil
}
