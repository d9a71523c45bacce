package ai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"ailedger/internal/core"
)

// DecodeDraft converts a loosely typed model reply into a Draft. Every field
// falls back to a safe default:
//
//	amount   not a number or negative -> 0
//	category missing or empty         -> 其他
//	type     anything but "INCOME"    -> EXPENSE
//	note     missing or empty         -> 智能识别账单
//	date     missing or unparsable    -> today
func DecodeDraft(raw map[string]any, today core.Date) core.Draft {
	d := core.Draft{
		Category: core.CategoryOthers,
		Type:     core.TypeExpense,
		Note:     core.DraftNotePlaceholder,
		Date:     today,
	}

	if f, ok := raw["amount"].(float64); ok && f > 0 {
		d.Amount = core.MoneyFromFloat(f)
	}
	if s, ok := raw["category"].(string); ok && strings.TrimSpace(s) != "" {
		d.Category = core.ParseCategory(s)
	}
	if s, ok := raw["type"].(string); ok && s == string(core.TypeIncome) {
		d.Type = core.TypeIncome
	}
	if s, ok := raw["note"].(string); ok && strings.TrimSpace(s) != "" {
		d.Note = strings.TrimSpace(s)
	}
	if s, ok := raw["date"].(string); ok {
		if date, err := core.ParseDate(s); err == nil {
			d.Date = date
		}
	}
	return d
}

// ParseReply decodes the message content of a completion. Models sometimes
// wrap JSON in a markdown fence even when a schema is requested.
func ParseReply(content string, today core.Date) (core.Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		content = "{}"
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return core.Draft{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return DecodeDraft(raw, today), nil
}

// DecodeImage accepts base64 image data with or without a data URL header
// such as "data:image/png;base64,". It returns the bytes and the declared
// MIME type, which is empty when there was no header.
func DecodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mime := ""
	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: data URL without payload", ErrInvalidImage)
		}
		mime, _, _ = strings.Cut(strings.TrimPrefix(header, "data:"), ";")
		s = payload
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(b) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return b, mime, nil
}

func dataURL(image []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
