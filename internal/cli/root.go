package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// session resolves configuration and opens the App for a single command.
type session struct {
	cfgFile string
}

func (s *session) open(cmd *cobra.Command) (*App, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(s.cfgFile)
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return NewApp(cmd.Context(), cfg, logger)
}

// withApp runs fn with an opened App and closes it afterwards.
func (s *session) withApp(fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		app, err := s.open(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := app.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args, app)
	}
}

// NewRoot creates the ailedger command tree.
func NewRoot() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:           "ailedger",
		Short:         "AI assisted personal ledger",
		Long:          "Record income and expenses, browse and summarize them, and draft entries from text or receipts with an AI model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default is ./ailedger.yaml)")

	rootCmd.AddCommand(
		newServeCmd(s),
		newAddCmd(s),
		newListCmd(s),
		newStatsCmd(s),
		newDeleteCmd(s),
		newClearCmd(s),
		newNoteCmd(s),
		newParseCmd(s),
		newThemeCmd(s),
	)
	return rootCmd
}

// confirm asks prompt on out and reads a y/yes answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
