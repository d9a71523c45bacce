package google

import (
	"fmt"
	"strings"

	"ailedger/internal/core"
	"ailedger/internal/storage/record"
)

// lastColumn is the spreadsheet column letter of the final header field.
func lastColumn() string {
	return string(rune('A' + len(record.Header) - 1))
}

// ledgerValues renders the header row followed by one row per transaction.
func ledgerValues(txs []core.Transaction) [][]any {
	values := make([][]any, 0, len(txs)+1)
	header := make([]any, len(record.Header))
	for i, h := range record.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, t := range txs {
		values = append(values, record.FromTransaction(t).Cells())
	}
	return values
}

// parseLedger converts a values matrix (as returned by the Sheets API) into
// transactions. The header row and blank rows are skipped.
func parseLedger(values [][]any) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		first := record.CellString(row[0])
		if first == "" {
			continue
		}
		if i == 0 && strings.EqualFold(first, record.Header[0]) {
			continue
		}
		r, err := record.FromCells(row)
		if err != nil {
			return nil, fmt.Errorf("sheet row %d: %w", i+1, err)
		}
		t, err := r.Transaction()
		if err != nil {
			return nil, fmt.Errorf("sheet row %d: %w", i+1, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// settingValue finds key in a two-column key/value matrix.
func settingValue(values [][]any, key string) string {
	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		if strings.EqualFold(record.CellString(row[0]), key) {
			return record.CellString(row[1])
		}
	}
	return ""
}
