package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregates are the totals derived from a set of transactions.
type Aggregates struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
	Count   int   `json:"count"`
}

// CategoryAmount represents expense totals aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
	Count    int      `json:"count"`
	Share    float64  `json:"share"` // percent of total expense
}

// Summarize computes income, expense and balance in a single pass.
func Summarize(txs []Transaction) Aggregates {
	var a Aggregates
	for _, t := range txs {
		if t.Type == TypeIncome {
			a.Income = a.Income.Add(t.Amount)
		} else {
			a.Expense = a.Expense.Add(t.Amount)
		}
	}
	a.Balance = a.Income.Sub(a.Expense)
	a.Count = len(txs)
	return a
}

// CategoryTotals groups EXPENSE records by category and returns the groups by
// descending total. Equal totals keep the order in which the category first
// appears in txs.
func CategoryTotals(txs []Transaction) []CategoryAmount {
	index := make(map[Category]int)
	var out []CategoryAmount
	var total Money
	for _, t := range txs {
		if t.Type != TypeExpense {
			continue
		}
		total = total.Add(t.Amount)
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryAmount{Category: t.Category})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		out[i].Count++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount.Decimal)
	})

	if total.IsPositive() {
		hundred := decimal.NewFromInt(100)
		for i := range out {
			out[i].Share = out[i].Amount.Mul(hundred).Div(total.Decimal).Round(2).InexactFloat64()
		}
	}
	return out
}
