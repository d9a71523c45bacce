// Package record converts ledger transactions to and from the flat string
// rows used by the tabular backends (SQL tables and spreadsheets).
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ailedger/internal/core"
)

// Header lists the column order shared by every tabular backend.
var Header = []string{"id", "amount", "type", "category", "note", "date", "timestamp"}

// Row is a transaction flattened to storage-friendly scalars.
type Row struct {
	ID        string
	Amount    string
	Type      string
	Category  string
	Note      string
	Date      string
	Timestamp int64
}

func FromTransaction(t core.Transaction) Row {
	return Row{
		ID:        t.ID,
		Amount:    t.Amount.Decimal.String(),
		Type:      string(t.Type),
		Category:  string(t.Category),
		Note:      t.Note,
		Date:      t.Date.String(),
		Timestamp: t.Timestamp,
	}
}

// Transaction parses the row back. Categories are kept verbatim so custom
// categories survive a round trip.
func (r Row) Transaction() (core.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: amount %q: %w", r.ID, r.Amount, core.ErrInvalidAmount)
	}
	typ := core.TransactionType(strings.TrimSpace(r.Type))
	if !typ.Valid() {
		return core.Transaction{}, fmt.Errorf("row %s: %w: %q", r.ID, core.ErrInvalidType, r.Type)
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", r.ID, err)
	}
	return core.Transaction{
		ID:        r.ID,
		Amount:    core.NewMoney(amount),
		Type:      typ,
		Category:  core.Category(r.Category),
		Note:      r.Note,
		Date:      date,
		Timestamp: r.Timestamp,
	}, nil
}

// Cells renders the row for a spreadsheet. Amount and timestamp are numbers
// so the sheet can compute with them.
func (r Row) Cells() []any {
	amount, err := strconv.ParseFloat(r.Amount, 64)
	if err != nil {
		return []any{r.ID, r.Amount, r.Type, r.Category, r.Note, r.Date, r.Timestamp}
	}
	return []any{r.ID, amount, r.Type, r.Category, r.Note, r.Date, r.Timestamp}
}

// FromCells parses a spreadsheet row laid out as Header.
func FromCells(cells []any) (Row, error) {
	s := make([]string, len(Header))
	for i := range s {
		if i < len(cells) {
			s[i] = CellString(cells[i])
		}
	}
	var ts int64
	if s[6] != "" {
		v, err := strconv.ParseInt(s[6], 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("row %s: timestamp %q: %w", s[0], s[6], err)
		}
		ts = v
	}
	return Row{ID: s[0], Amount: s[1], Type: s[2], Category: s[3], Note: s[4], Date: s[5], Timestamp: ts}, nil
}

// CellString formats a value returned by the Sheets API. Numbers arrive as
// float64 and must not be printed in exponent form.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
