package memory

import (
	"context"
	"sync"

	"ailedger/internal/core"
	"ailedger/internal/ports"
)

// Store keeps the ledger in process memory. It is used for tests and
// for throwaway sessions; nothing survives a restart.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	theme string
	saves int
}

var (
	_ ports.Store         = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

func New(seed ...core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), seed...)}
}

// LoadTransactions returns a copy so callers cannot alias the stored slice.
func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]core.Transaction, 0, len(s.items)), s.items...), nil
}

func (s *Store) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(make([]core.Transaction, 0, len(txs)), txs...)
	s.saves++
	return nil
}

func (s *Store) LoadTheme(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme, nil
}

func (s *Store) SaveTheme(_ context.Context, theme core.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = string(theme)
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

// Saves reports how many times the ledger was written.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
