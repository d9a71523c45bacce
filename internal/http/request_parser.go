// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded so the API is easy to drive with curl.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ailedger/internal/ai"
	"ailedger/internal/core"
)

// MaxBodyBytes caps request bodies; receipts are the largest payloads.
const MaxBodyBytes = 10 << 20

var (
	errBodyTooLarge = errors.New("request body too large")
	errMissingFile  = errors.New("missing receipt file")
)

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	var maxErr *http.MaxBytesError
	if errors.As(p.err, &maxErr) {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = fmt.Errorf("malformed JSON body: %w", err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseNewTransaction reads amount, type, category, note and date. Amounts
// follow the keypad rules of core.ParseAmount whether sent as a string or a
// number. A missing type means EXPENSE and a missing date means today.
func ParseNewTransaction(p *RequestBodyParser) (core.NewTransaction, error) {
	if err := p.Parse(); err != nil {
		return core.NewTransaction{}, err
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.NewTransaction{}, err
	}

	txType := core.TypeExpense
	if raw := p.Get("type"); raw != "" {
		if txType, err = core.ParseTransactionType(raw); err != nil {
			return core.NewTransaction{}, err
		}
	}

	var date core.Date
	if raw := p.Get("date"); raw != "" {
		if date, err = core.ParseDate(raw); err != nil {
			return core.NewTransaction{}, err
		}
	}

	return core.NewTransaction{
		Amount:   amount,
		Type:     txType,
		Category: core.ParseCategory(p.Get("category")),
		Note:     p.Get("note"),
		Date:     date,
	}, nil
}

// ParseFilter reads q, type and range from the query string.
func ParseFilter(query url.Values) (core.Filter, error) {
	typeFilter, err := core.ParseTypeFilter(query.Get("type"))
	if err != nil {
		return core.Filter{}, err
	}
	dateFilter, err := core.ParseDateFilter(query.Get("range"))
	if err != nil {
		return core.Filter{}, err
	}
	return core.Filter{
		Query: sanitizeInput(query.Get("q")),
		Type:  typeFilter,
		Range: dateFilter,
	}, nil
}

// ConfirmRequested reports whether a destructive request carries confirm=true.
func ConfirmRequested(r *http.Request) bool {
	ok, err := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return err == nil && ok
}

// ParseReceipt extracts an uploaded receipt. Multipart requests carry it in
// the "file" field; JSON requests carry a base64 or data URL "image" field.
// The returned MIME type is a hint and may be empty.
func ParseReceipt(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxBodyBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, "", errBodyTooLarge
			}
			return nil, "", fmt.Errorf("malformed multipart body: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errMissingFile
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", fmt.Errorf("read receipt: %w", err)
		}
		return data, header.Header.Get("Content-Type"), nil
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, "", err
	}
	if !p.IsJSON() {
		return nil, "", errMissingFile
	}
	raw, _ := p.jsonData["image"].(string)
	if strings.TrimSpace(raw) == "" {
		return nil, "", errMissingFile
	}
	data, mimeType, err := ai.DecodeImage(raw)
	if err != nil {
		return nil, "", err
	}
	if hint := p.Get("mime_type"); hint != "" && mimeType == "" {
		mimeType = hint
	}
	return data, mimeType, nil
}

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
