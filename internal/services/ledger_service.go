package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ailedger/internal/core"
	"ailedger/internal/events"
	applog "ailedger/internal/log"
	"ailedger/internal/ports"
)

// Change describes a mutation that was applied and persisted.
type Change struct {
	Event      *events.LedgerEvent `json:"event"`
	Aggregates core.Aggregates     `json:"aggregates"`
}

// Snapshot is a consistent copy of the ledger state.
type Snapshot struct {
	Transactions []core.Transaction `json:"transactions"`
	Aggregates   core.Aggregates    `json:"aggregates"`
	Version      int64              `json:"version"`
}

// LedgerOption configures a LedgerService.
type LedgerOption func(*LedgerService)

// WithPublisher sends a LedgerEvent for every applied mutation.
func WithPublisher(p ports.EventPublisher) LedgerOption {
	return func(s *LedgerService) { s.publisher = p }
}

func WithLogger(l *slog.Logger) LedgerOption {
	return func(s *LedgerService) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func WithIDGenerator(gen func() string) LedgerOption {
	return func(s *LedgerService) { s.newID = gen }
}

// LedgerService owns the in-memory transaction collection. Every mutation is
// persisted through the repository before it becomes visible.
type LedgerService struct {
	repo      ports.TransactionRepository
	publisher ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu         sync.RWMutex
	txs        []core.Transaction
	aggregates core.Aggregates
	version    int64

	listenersMu sync.Mutex
	listeners   map[int]func(Change)
	nextID      int
}

func NewLedgerService(repo ports.TransactionRepository, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		now:       time.Now,
		newID:     newTransactionID,
		listeners: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(applog.FieldComponent, applog.ComponentLedger)
	return s
}

// newTransactionID returns a time-ordered UUID so ids follow creation order.
func newTransactionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the collection with the persisted one. Unreadable or
// malformed data leaves an empty ledger and is logged, never returned.
func (s *LedgerService) Load(ctx context.Context) {
	txs, err := s.repo.LoadTransactions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored ledger unreadable, starting empty",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldError, err)
		txs = nil
	}

	valid := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed stored transaction",
				applog.FieldTransactionID, t.ID,
				applog.FieldError, err)
			continue
		}
		valid = append(valid, t)
	}

	s.mu.Lock()
	s.commit(valid)
	count := len(s.txs)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded", applog.FieldCount, count)
}

// Add records a new transaction at the head of the ledger. Amounts that are
// not strictly positive are rejected with core.ErrInvalidAmount.
func (s *LedgerService) Add(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	tx, err := in.Build(s.newID(), s.now())
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	next := make([]core.Transaction, 0, len(s.txs)+1)
	next = append(next, tx)
	next = append(next, s.txs...)
	change, err := s.apply(ctx, next, events.KindAdded, tx.ID)
	s.mu.Unlock()
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction added",
		applog.NewFields().WithOperation(applog.OpCreate).WithTransaction(tx).ToSlice()...)
	s.afterChange(ctx, change)
	return tx, nil
}

// Delete removes the transaction with the given id. It reports false when no
// such transaction exists, in which case nothing is written.
func (s *LedgerService) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := make([]core.Transaction, 0, len(s.txs)-1)
	next = append(next, s.txs[:i]...)
	next = append(next, s.txs[i+1:]...)
	change, err := s.apply(ctx, next, events.KindDeleted, id)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, id)
	s.afterChange(ctx, change)
	return true, nil
}

// UpdateNote replaces the note of an existing transaction. A blank note or
// an unknown id is a no-op reported as false.
func (s *LedgerService) UpdateNote(ctx context.Context, id, note string) (bool, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return false, nil
	}
	if len([]rune(note)) > core.MaxNoteLength {
		return false, core.ErrNoteTooLong
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := make([]core.Transaction, len(s.txs))
	copy(next, s.txs)
	next[i].Note = note
	change, err := s.apply(ctx, next, events.KindNoteUpdated, id)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "Transaction note updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldTransactionID, id)
	s.afterChange(ctx, change)
	return true, nil
}

// Clear removes every transaction and returns how many were removed.
func (s *LedgerService) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	removed := len(s.txs)
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	change, err := s.apply(ctx, []core.Transaction{}, events.KindCleared, "")
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Ledger cleared",
		applog.FieldOperation, applog.OpClear,
		applog.FieldCount, removed)
	s.afterChange(ctx, change)
	return removed, nil
}

// Get returns the transaction with the given id or core.ErrNotFound.
func (s *LedgerService) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *LedgerService) Aggregates() core.Aggregates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregates
}

// Version counts applied mutations since Load.
func (s *LedgerService) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a copy of the ledger, newest first.
func (s *LedgerService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := make([]core.Transaction, len(s.txs))
	copy(txs, s.txs)
	return Snapshot{Transactions: txs, Aggregates: s.aggregates, Version: s.version}
}

// Filter returns the transactions matching f, evaluated at now.
func (s *LedgerService) Filter(f core.Filter, now time.Time) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.txs, now)
}

func (s *LedgerService) CategoryTotals() []core.CategoryAmount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CategoryTotals(s.txs)
}

// OnChange registers fn to run after every applied mutation. The returned
// function removes the registration.
func (s *LedgerService) OnChange(fn func(Change)) (remove func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// apply persists next and swaps it in. Callers hold s.mu.
func (s *LedgerService) apply(ctx context.Context, next []core.Transaction, kind events.Kind, id string) (Change, error) {
	if err := s.repo.SaveTransactions(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger",
			applog.FieldEventKind, string(kind),
			applog.FieldError, err)
		return Change{}, fmt.Errorf("save ledger: %w", err)
	}
	s.commit(next)
	s.version++
	return Change{
		Event:      events.NewLedgerEvent(kind, id, len(next), s.version),
		Aggregates: s.aggregates,
	}, nil
}

func (s *LedgerService) commit(txs []core.Transaction) {
	s.txs = txs
	s.aggregates = core.Summarize(txs)
}

func (s *LedgerService) indexOf(id string) int {
	for i, t := range s.txs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *LedgerService) afterChange(ctx context.Context, change Change) {
	s.listenersMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, change.Event); err != nil {
		// The mutation is already persisted; the mirror catches up on its ticker.
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldEventKind, string(change.Event.Kind),
			applog.FieldVersion, change.Event.Version,
			applog.FieldError, err)
	}
}

// Close releases the event publisher.
func (s *LedgerService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
