package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TypeExpense TransactionType = "EXPENSE"
	TypeIncome  TransactionType = "INCOME"
)

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const (
	ViewHome     View = "HOME"
	ViewAdd      View = "ADD"
	ViewStats    View = "STATS"
	ViewSettings View = "SETTINGS"
)

// Confirmation prompts shown before destructive operations.
const (
	ConfirmDeletePrompt = "确定要删除这条账单吗？"
	ConfirmClearPrompt  = "⚠️ 高危操作\n\n确定要清空所有账单数据吗？此操作无法撤销。"
)

// DateLayout is the calendar-date format used for storage and transport.
const DateLayout = "2006-01-02"

// MaxNoteLength bounds the note text accepted from callers.
const MaxNoteLength = 200

type (
	TransactionType string

	// Theme is the persisted UI color preference.
	Theme string

	// View is a navigation hint returned to interactive surfaces.
	View string

	Date struct {
		time.Time
	}

	// Transaction is a single recorded income or expense event. Only the note
	// may change after creation.
	Transaction struct {
		ID        string          `json:"id"`
		Amount    Money           `json:"amount"`
		Type      TransactionType `json:"type"`
		Category  Category        `json:"category"`
		Note      string          `json:"note"`
		Date      Date            `json:"date"`
		Timestamp int64           `json:"timestamp"` // creation instant, unix millis
	}

	// NewTransaction carries user input before an id and timestamp are assigned.
	NewTransaction struct {
		Amount   Money
		Type     TransactionType
		Category Category
		Note     string
		Date     Date // zero means today
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyNote     = errors.New("empty note")
	ErrNoteTooLong   = fmt.Errorf("note too long (max %d characters)", MaxNoteLength)
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidTheme  = errors.New("invalid theme")
	ErrInvalidFilter = errors.New("invalid filter")
)

// ParseTransactionType accepts EXPENSE or INCOME in any letter case.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeExpense:
		return TypeExpense, nil
	case TypeIncome:
		return TypeIncome, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) Valid() bool {
	return t == TypeExpense || t == TypeIncome
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the calendar date of now in now's own location.
func Today(now time.Time) Date {
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// InMonth reports whether d falls in the given calendar month.
func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CreatedAt returns the creation instant.
func (t Transaction) CreatedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("empty transaction id")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return t.Date.Validate()
}

// Build assigns id and creation time and fills in defaults: the category
// falls back to OTHERS, the note to the category label, and the date to today.
func (n NewTransaction) Build(id string, now time.Time) (Transaction, error) {
	if err := n.Amount.Validate(); err != nil {
		return Transaction{}, err
	}
	if !n.Type.Valid() {
		return Transaction{}, ErrInvalidType
	}
	category := n.Category
	if strings.TrimSpace(string(category)) == "" {
		category = CategoryOthers
	}
	note := strings.TrimSpace(n.Note)
	if note == "" {
		note = string(category)
	}
	if len([]rune(note)) > MaxNoteLength {
		return Transaction{}, ErrNoteTooLong
	}
	date := n.Date
	if date.IsZero() {
		date = Today(now)
	}
	return Transaction{
		ID:        id,
		Amount:    n.Amount,
		Type:      n.Type,
		Category:  category,
		Note:      note,
		Date:      date,
		Timestamp: now.UnixMilli(),
	}, nil
}

// ParseTheme accepts light or dark.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
