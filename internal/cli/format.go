package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"ailedger/internal/core"
)

var (
	incomeColor  = color.New(color.FgGreen)
	expenseColor = color.New(color.FgRed)
	mutedColor   = color.New(color.Faint)
	headerColor  = color.New(color.Bold)
)

// formatMoney renders an amount with thousands separators and two decimals.
func formatMoney(m core.Money) string {
	return "¥" + humanize.FormatFloat("#,###.##", m.InexactFloat64())
}

// formatSigned prefixes the amount with + or - and colors it by type.
func formatSigned(t core.Transaction) string {
	if t.Type == core.TypeIncome {
		return incomeColor.Sprint("+" + formatMoney(t.Amount))
	}
	return expenseColor.Sprint("-" + formatMoney(t.Amount))
}

func printTransaction(w io.Writer, t core.Transaction) {
	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		t.Date, t.Category, formatSigned(t), t.Note, mutedColor.Sprint(t.ID))
}

func printTransactions(w io.Writer, txs []core.Transaction, now time.Time) {
	if len(txs) == 0 {
		fmt.Fprintln(w, mutedColor.Sprint("暂无账单"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("DATE\tCATEGORY\tAMOUNT\tNOTE\tADDED\tID"))
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Date, t.Category, formatSigned(t), t.Note,
			humanize.RelTime(t.CreatedAt(), now, "ago", "from now"), t.ID)
	}
	_ = tw.Flush()
}

func printAggregates(w io.Writer, a core.Aggregates) {
	balance := formatMoney(a.Balance)
	if a.Balance.IsNegative() {
		balance = expenseColor.Sprint("-" + formatMoney(core.NewMoney(a.Balance.Neg())))
	}
	fmt.Fprintf(w, "收入 %s  支出 %s  结余 %s  (%s 笔)\n",
		incomeColor.Sprint(formatMoney(a.Income)),
		expenseColor.Sprint(formatMoney(a.Expense)),
		balance,
		humanize.Comma(int64(a.Count)))
}

func printCategoryTotals(w io.Writer, totals []core.CategoryAmount) {
	if len(totals) == 0 {
		fmt.Fprintln(w, mutedColor.Sprint("暂无支出"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t%d\n", c.Category, formatMoney(c.Amount), c.Share, c.Count)
	}
	_ = tw.Flush()
}

func printDraft(w io.Writer, d core.Draft) {
	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", d.Date, d.Type, d.Category, formatMoney(d.Amount), d.Note)
}
