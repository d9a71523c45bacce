package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	TypeAll         TypeFilter = "ALL"
	TypeOnlyExpense TypeFilter = "EXPENSE"
	TypeOnlyIncome  TypeFilter = "INCOME"
	RangeAll        DateFilter = "ALL"
	RangeThisMonth  DateFilter = "THIS_MONTH"
	RangeLastMonth  DateFilter = "LAST_MONTH"
)

type (
	TypeFilter string
	DateFilter string

	// Filter holds the search criteria of a browsing session. All criteria
	// must match for a transaction to be kept.
	Filter struct {
		Query string
		Type  TypeFilter
		Range DateFilter
	}
)

// ParseTypeFilter maps user input to a TypeFilter. Empty input means ALL.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return TypeAll, nil
	case TypeAll, TypeOnlyExpense, TypeOnlyIncome:
		return f, nil
	}
	return "", fmt.Errorf("%w: type %q", ErrInvalidFilter, s)
}

// ParseDateFilter maps user input to a DateFilter. Empty input means ALL.
func ParseDateFilter(s string) (DateFilter, error) {
	switch f := DateFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return RangeAll, nil
	case RangeAll, RangeThisMonth, RangeLastMonth:
		return f, nil
	}
	return "", fmt.Errorf("%w: range %q", ErrInvalidFilter, s)
}

// IsZero reports whether the filter keeps every transaction.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" &&
		(f.Type == "" || f.Type == TypeAll) &&
		(f.Range == "" || f.Range == RangeAll)
}

// Apply returns the transactions matching f, in source order. Month ranges
// are evaluated against now in now's location. txs is not modified.
func (f Filter) Apply(txs []Transaction, now time.Time) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// Match reports whether a single transaction satisfies every criterion.
func (f Filter) Match(t Transaction, now time.Time) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Note), q) &&
			!strings.Contains(strings.ToLower(string(t.Category)), q) {
			return false
		}
	}

	switch f.Type {
	case TypeOnlyExpense:
		if t.Type != TypeExpense {
			return false
		}
	case TypeOnlyIncome:
		if t.Type != TypeIncome {
			return false
		}
	}

	switch f.Range {
	case RangeThisMonth:
		if !t.Date.InMonth(now.Year(), now.Month()) {
			return false
		}
	case RangeLastMonth:
		// Day 1 keeps time.Date from normalizing March 31 into March 3.
		prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		if !t.Date.InMonth(prev.Year(), prev.Month()) {
			return false
		}
	}
	return true
}
