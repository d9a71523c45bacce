package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ailedger/internal/core"
	"ailedger/internal/ports"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID   string
	SheetName       string // ledger rows, default "Ledger"
	SettingsSheet   string // key/value preferences, default "Settings"
	CredentialsJSON string
	CredentialsFile string
}

// Client keeps the ledger in a Google Sheet: one header row followed by one
// row per transaction, newest first. Every save rewrites the whole range.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	settingsSheet string
}

// Ensure interface conformance
var (
	_ ports.Store         = (*Client)(nil)
	_ ports.HealthChecker = (*Client)(nil)
)

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	ledger := strings.TrimSpace(cfg.SheetName)
	if ledger == "" {
		ledger = "Ledger"
	}
	settings := strings.TrimSpace(cfg.SettingsSheet)
	if settings == "" {
		settings = "Settings"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerSheet:   ledger,
		settingsSheet: settings,
	}, nil
}

// newSheetsService authenticates with service account credentials, inline
// or from a file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.DebugContext(ctx, "Using inline service account credentials")
	case credentialsFile != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
		slog.DebugContext(ctx, "Read service account credentials", "path", credentialsFile)
	default:
		return nil, errors.New("missing service account credentials (set sheets.credentials_json, sheets.credentials_file or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ledgerRange() string {
	return fmt.Sprintf("%s!A:%s", c.ledgerSheet, lastColumn())
}

// LoadTransactions reads every ledger row below the header.
func (c *Client) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.ledgerRange()).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.ledgerRange(), err)
	}
	return parseLedger(resp.Values)
}

// SaveTransactions clears the ledger sheet and writes header plus rows.
func (c *Client) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.ledgerRange(), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.ledgerRange(), err)
	}

	vr := &gsheet.ValueRange{Values: ledgerValues(txs)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.ledgerSheet+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", c.ledgerSheet, err)
	}

	slog.InfoContext(ctx, "Ledger mirrored to Google Sheets",
		"sheet", c.ledgerSheet,
		"rows", len(txs))
	return nil
}

// LoadTheme reads the theme from the settings sheet, row "theme".
func (c *Client) LoadTheme(ctx context.Context) (string, error) {
	rng := fmt.Sprintf("%s!A:B", c.settingsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}
	return settingValue(resp.Values, "theme"), nil
}

func (c *Client) SaveTheme(ctx context.Context, theme core.Theme) error {
	rng := fmt.Sprintf("%s!A1:B1", c.settingsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{"theme", string(theme)}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// Ping fetches the spreadsheet id only.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}
