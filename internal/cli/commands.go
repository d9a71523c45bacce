package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ailedger/internal/core"
	apphttp "ailedger/internal/http"
	"ailedger/internal/middleware/ratelimit"
	"ailedger/internal/services"
)

func newServeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the live WebSocket feed",
		Args:  cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			limits := ratelimit.DefaultConfig()
			limits.RequestsPerMinute = app.Config.HTTP.RateLimitPerMinute

			srv := apphttp.NewServer(":"+app.Config.Port, apphttp.Dependencies{
				Ledger:         app.Ledger,
				Preferences:    app.Preferences,
				Assist:         app.Assist,
				Health:         app.Health,
				Logger:         app.Logger,
				RateLimit:      limits,
				TrustedProxies: app.Config.HTTP.TrustedProxies,
			})
			srv.RegisterCache("drafts", app.Drafts)

			ctx, cancel := SignalContext(cmd.Context(), app.Logger)
			defer cancel()

			app.Logger.Info("Starting ailedger server",
				"port", app.Config.Port,
				"backend", app.Config.Storage.Backend,
				"broker", app.Config.Events.Broker)
			if err := srv.Run(ctx, app.Config.HTTP.ShutdownTimeout); err != nil {
				return err
			}
			app.Logger.Info("Server stopped gracefully")
			return nil
		}),
	}
}

func newAddCmd(s *session) *cobra.Command {
	var amount, txType, category, note, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or expense",
		Example: `  ailedger add --amount 35 --category 餐饮 --note 午饭
  ailedger add --amount 5000 --type income --category SALARY`,
		Args: cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			in, err := parseNewTransaction(amount, txType, category, note, date)
			if err != nil {
				return err
			}
			tx, err := app.Ledger.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTransaction(out, tx)
			printAggregates(out, app.Ledger.Aggregates())
			return nil
		}),
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount, at most two decimals (required)")
	cmd.Flags().StringVar(&txType, "type", string(core.TypeExpense), "EXPENSE or INCOME")
	cmd.Flags().StringVar(&category, "category", "", "category label or key (default 其他)")
	cmd.Flags().StringVar(&note, "note", "", "note (default is the category)")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseNewTransaction(amount, txType, category, note, date string) (core.NewTransaction, error) {
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.NewTransaction{}, fmt.Errorf("%w: %q", err, amount)
	}
	t, err := core.ParseTransactionType(txType)
	if err != nil {
		return core.NewTransaction{}, err
	}
	var d core.Date
	if strings.TrimSpace(date) != "" {
		if d, err = core.ParseDate(date); err != nil {
			return core.NewTransaction{}, err
		}
	}
	return core.NewTransaction{
		Amount:   m,
		Type:     t,
		Category: core.ParseCategory(category),
		Note:     note,
		Date:     d,
	}, nil
}

func newListCmd(s *session) *cobra.Command {
	var query, txType, dateRange string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			typeFilter, err := core.ParseTypeFilter(txType)
			if err != nil {
				return err
			}
			rangeFilter, err := core.ParseDateFilter(dateRange)
			if err != nil {
				return err
			}
			now := time.Now()
			txs := app.Ledger.Filter(core.Filter{Query: query, Type: typeFilter, Range: rangeFilter}, now)

			out := cmd.OutOrStdout()
			if asJSON {
				if txs == nil {
					txs = []core.Transaction{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"transactions": txs,
					"aggregates":   core.Summarize(txs),
				})
			}
			printTransactions(out, txs, now)
			printAggregates(out, core.Summarize(txs))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "match note or category")
	cmd.Flags().StringVar(&txType, "type", "", "ALL, EXPENSE or INCOME")
	cmd.Flags().StringVar(&dateRange, "range", "", "ALL, THIS_MONTH or LAST_MONTH")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStatsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals and expenses by category",
		Args:  cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			out := cmd.OutOrStdout()
			printAggregates(out, app.Ledger.Aggregates())
			printCategoryTotals(out, app.Ledger.CategoryTotals())
			return nil
		}),
	}
}

func newDeleteCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			out := cmd.OutOrStdout()
			tx, err := app.Ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			printTransaction(out, tx)
			if !yes && !confirm(cmd.InOrStdin(), out, core.ConfirmDeletePrompt) {
				fmt.Fprintln(out, "已取消")
				return nil
			}
			if _, err := app.Ledger.Delete(cmd.Context(), tx.ID); err != nil {
				return err
			}
			fmt.Fprintln(out, "已删除")
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newClearCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every transaction",
		Args:  cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, _ []string, app *App) error {
			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, core.ConfirmClearPrompt) {
				fmt.Fprintln(out, "已取消")
				return nil
			}
			removed, err := app.Ledger.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "已清空 %d 笔账单\n", removed)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newNoteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "note ID TEXT",
		Short: "Replace the note of a transaction",
		Args:  cobra.MinimumNArgs(2),
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			note := strings.TrimSpace(strings.Join(args[1:], " "))
			if note == "" {
				return core.ErrEmptyNote
			}
			updated, err := app.Ledger.UpdateNote(cmd.Context(), args[0], note)
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("%w: %s", core.ErrNotFound, args[0])
			}
			tx, err := app.Ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTransaction(cmd.OutOrStdout(), tx)
			return nil
		}),
	}
}

func newParseCmd(s *session) *cobra.Command {
	var save bool

	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Draft a transaction with the AI assistant",
	}
	parseCmd.PersistentFlags().BoolVar(&save, "save", false, "record the draft in the ledger")

	// finish prints the draft and records it when --save is given.
	finish := func(cmd *cobra.Command, app *App, d *core.Draft) error {
		out := cmd.OutOrStdout()
		if d == nil {
			fmt.Fprintln(out, services.UnavailableMessage)
			return nil
		}
		printDraft(out, *d)
		if !save {
			return nil
		}
		tx, err := app.Ledger.Add(cmd.Context(), d.NewTransaction())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "已记录 %s\n", tx.ID)
		return nil
	}

	parseCmd.AddCommand(
		&cobra.Command{
			Use:   "text DESCRIPTION",
			Short: "Draft from free text such as \"午饭 35\"",
			Args:  cobra.MinimumNArgs(1),
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
				d, _ := app.Assist.FromText(cmd.Context(), strings.Join(args, " "))
				return finish(cmd, app, d)
			}),
		},
		&cobra.Command{
			Use:   "image FILE",
			Short: "Draft from a receipt photo",
			Args:  cobra.ExactArgs(1),
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				d, _ := app.Assist.FromImage(cmd.Context(), data, "")
				return finish(cmd, app, d)
			}),
		},
		&cobra.Command{
			Use:   "pdf FILE",
			Short: "Draft from a PDF receipt",
			Args:  cobra.ExactArgs(1),
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				d, _ := app.Assist.FromPDF(cmd.Context(), data)
				return finish(cmd, app, d)
			}),
		},
	)
	return parseCmd
}

func newThemeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(core.ThemeLight), string(core.ThemeDark), "toggle"},
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *App) error {
			ctx := cmd.Context()
			var theme core.Theme
			switch {
			case len(args) == 0:
				theme = app.Preferences.Theme(ctx)
			case args[0] == "toggle":
				t, err := app.Preferences.Toggle(ctx)
				if err != nil {
					return err
				}
				theme = t
			default:
				t, err := core.ParseTheme(args[0])
				if err != nil {
					return err
				}
				if err := app.Preferences.SetTheme(ctx, t); err != nil {
					return err
				}
				theme = t
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		}),
	}
}
