// Package file persists the ledger as plain files, one per key, using the
// same key names the browser version kept in local storage.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"ailedger/internal/core"
	"ailedger/internal/ports"
)

const (
	TransactionsKey = "ai_ledger_transactions"
	ThemeKey        = "app_theme"
)

type Store struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
}

var (
	_ ports.Store         = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// New creates the data directory on fs if needed.
func New(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// NewOS stores files under dir on the local disk.
func NewOS(dir string) (*Store, error) {
	return New(afero.NewOsFs(), dir)
}

func (s *Store) transactionsPath() string {
	return filepath.Join(s.dir, TransactionsKey+".json")
}

func (s *Store) themePath() string {
	return filepath.Join(s.dir, ThemeKey)
}

// LoadTransactions reads the JSON array. A missing file is an empty ledger.
func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.transactionsPath())
	if errors.Is(err, os.ErrNotExist) {
		return []core.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TransactionsKey, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []core.Transaction{}, nil
	}

	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TransactionsKey, err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// SaveTransactions writes to a temporary file and renames it into place.
func (s *Store) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", TransactionsKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(s.transactionsPath(), data)
}

func (s *Store) LoadTheme(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.themePath())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ThemeKey, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) SaveTheme(_ context.Context, theme core.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(s.themePath(), []byte(theme))
}

// Ping checks that the data directory is still reachable.
func (s *Store) Ping(_ context.Context) error {
	_, err := s.fs.Stat(s.dir)
	return err
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
