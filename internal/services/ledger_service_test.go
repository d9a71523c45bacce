package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ailedger/internal/core"
	"ailedger/internal/events"
	"ailedger/internal/storage/memory"
)

var fixedNow = time.Date(2024, time.May, 17, 12, 0, 0, 0, time.UTC)

// flakyRepo fails loads or saves on demand.
type flakyRepo struct {
	mu       sync.Mutex
	items    []core.Transaction
	loadErr  error
	saveErr  error
	saves    int
	lastSave []core.Transaction
}

func (r *flakyRepo) LoadTransactions(context.Context) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]core.Transaction(nil), r.items...), nil
}

func (r *flakyRepo) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.items = append([]core.Transaction(nil), txs...)
	r.lastSave = r.items
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt *events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

func newTestLedger(t *testing.T, repo interface {
	LoadTransactions(context.Context) ([]core.Transaction, error)
	SaveTransactions(context.Context, []core.Transaction) error
}, opts ...LedgerOption) *LedgerService {
	t.Helper()
	seq := 0
	opts = append([]LedgerOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("tx-%d", seq)
		}),
	}, opts...)
	s := NewLedgerService(repo, opts...)
	s.Load(context.Background())
	return s
}

func money(f float64) core.Money { return core.MoneyFromFloat(f) }

func expense(amount float64, category core.Category, note string) core.NewTransaction {
	return core.NewTransaction{Amount: money(amount), Type: core.TypeExpense, Category: category, Note: note}
}

func income(amount float64, category core.Category, note string) core.NewTransaction {
	return core.NewTransaction{Amount: money(amount), Type: core.TypeIncome, Category: category, Note: note}
}

func TestLedger_AddScenario(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := newTestLedger(t, repo)

	if _, err := s.Add(ctx, expense(58, core.CategoryTransport, "打车")); err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if _, err := s.Add(ctx, income(5000, core.CategorySalary, "工资")); err != nil {
		t.Fatalf("add income: %v", err)
	}

	a := s.Aggregates()
	if !a.Income.Equal(money(5000)) || !a.Expense.Equal(money(58)) || !a.Balance.Equal(money(4942)) {
		t.Fatalf("unexpected aggregates %+v", a)
	}

	snap := s.Snapshot()
	if len(snap.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(snap.Transactions))
	}
	if snap.Transactions[0].Note != "工资" {
		t.Fatalf("expected newest first, got %q first", snap.Transactions[0].Note)
	}
	if snap.Version != 2 {
		t.Fatalf("expected version 2, got %d", snap.Version)
	}
	if repo.Saves() != 2 {
		t.Fatalf("expected 2 saves, got %d", repo.Saves())
	}
}

func TestLedger_AddDefaults(t *testing.T) {
	s := newTestLedger(t, memory.New())

	tx, err := s.Add(context.Background(), core.NewTransaction{Amount: money(12), Type: core.TypeExpense})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tx.ID != "tx-1" {
		t.Fatalf("expected generated id, got %q", tx.ID)
	}
	if tx.Category != core.CategoryOthers || tx.Note != string(core.CategoryOthers) {
		t.Fatalf("expected category and note defaults, got %q / %q", tx.Category, tx.Note)
	}
	if tx.Date.String() != "2024-05-17" {
		t.Fatalf("expected today's date, got %s", tx.Date)
	}
	if tx.Timestamp != fixedNow.UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", fixedNow.UnixMilli(), tx.Timestamp)
	}
}

func TestLedger_AddRejectsNonPositiveAmount(t *testing.T) {
	repo := memory.New()
	s := newTestLedger(t, repo)

	for _, amount := range []float64{0, -5} {
		_, err := s.Add(context.Background(), expense(amount, core.CategoryFood, "x"))
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if got := s.Aggregates().Count; got != 0 {
		t.Fatalf("expected empty ledger, got %d", got)
	}
	if repo.Saves() != 0 {
		t.Fatalf("expected no writes, got %d", repo.Saves())
	}
}

func TestLedger_BalanceInvariant(t *testing.T) {
	s := newTestLedger(t, memory.New())
	inputs := []core.NewTransaction{
		expense(12.5, core.CategoryFood, "早餐"),
		income(300, core.CategorySalary, "奖金"),
		expense(0.01, core.CategoryOthers, "零钱"),
		income(42.42, core.Category("红包"), "红包"),
	}
	for _, in := range inputs {
		if _, err := s.Add(context.Background(), in); err != nil {
			t.Fatalf("add: %v", err)
		}
		a := s.Aggregates()
		if !a.Balance.Equal(a.Income.Sub(a.Expense)) {
			t.Fatalf("balance %s != income %s - expense %s", a.Balance, a.Income, a.Expense)
		}
	}
}

func TestLedger_Delete(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := newTestLedger(t, repo)

	first, _ := s.Add(ctx, expense(10, core.CategoryFood, "a"))
	_, _ = s.Add(ctx, expense(20, core.CategoryFood, "b"))

	ok, err := s.Delete(ctx, first.ID)
	if err != nil || !ok {
		t.Fatalf("expected delete to succeed, got %v %v", ok, err)
	}
	if got := s.Aggregates(); got.Count != 1 || !got.Expense.Equal(money(20)) {
		t.Fatalf("unexpected aggregates after delete %+v", got)
	}

	saves := repo.Saves()
	ok, err = s.Delete(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected no-op for unknown id, got %v %v", ok, err)
	}
	if repo.Saves() != saves {
		t.Fatal("unknown id must not write")
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedger_UpdateNote(t *testing.T) {
	ctx := context.Background()
	s := newTestLedger(t, memory.New())
	tx, _ := s.Add(ctx, expense(10, core.CategoryFood, "午饭"))

	ok, err := s.UpdateNote(ctx, tx.ID, "  和同事午饭  ")
	if err != nil || !ok {
		t.Fatalf("expected update, got %v %v", ok, err)
	}
	got, _ := s.Get(ctx, tx.ID)
	if got.Note != "和同事午饭" {
		t.Fatalf("expected trimmed note, got %q", got.Note)
	}
	if !got.Amount.Equal(tx.Amount) || got.Date != tx.Date || got.Timestamp != tx.Timestamp {
		t.Fatal("only the note may change")
	}

	if ok, _ := s.UpdateNote(ctx, tx.ID, "   "); ok {
		t.Fatal("blank note must be rejected")
	}
	if ok, _ := s.UpdateNote(ctx, "missing", "x"); ok {
		t.Fatal("unknown id must be rejected")
	}
}

func TestLedger_Clear(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := newTestLedger(t, repo)

	n, err := s.Clear(ctx)
	if err != nil || n != 0 {
		t.Fatalf("clearing empty ledger: %d %v", n, err)
	}
	if repo.Saves() != 0 {
		t.Fatal("clearing an empty ledger must not write")
	}

	_, _ = s.Add(ctx, expense(1, core.CategoryFood, "a"))
	_, _ = s.Add(ctx, income(2, core.CategorySalary, "b"))

	n, err = s.Clear(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got %d %v", n, err)
	}
	a := s.Aggregates()
	if !a.Income.IsZero() || !a.Expense.IsZero() || !a.Balance.IsZero() || a.Count != 0 {
		t.Fatalf("expected zero aggregates, got %+v", a)
	}
	stored, _ := repo.LoadTransactions(ctx)
	if len(stored) != 0 {
		t.Fatalf("expected empty storage, got %d", len(stored))
	}
}

func TestLedger_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := newTestLedger(t, repo)
	_, _ = s.Add(ctx, expense(58, core.CategoryTransport, "打车"))
	_, _ = s.Add(ctx, income(5000, core.CategorySalary, "工资"))

	reloaded := newTestLedger(t, repo)
	want := s.Snapshot()
	got := reloaded.Snapshot()
	if len(got.Transactions) != len(want.Transactions) {
		t.Fatalf("expected %d transactions, got %d", len(want.Transactions), len(got.Transactions))
	}
	for i := range want.Transactions {
		if got.Transactions[i].ID != want.Transactions[i].ID {
			t.Fatalf("order differs at %d", i)
		}
	}
	if !got.Aggregates.Balance.Equal(want.Aggregates.Balance) {
		t.Fatalf("balance differs: %s vs %s", got.Aggregates.Balance, want.Aggregates.Balance)
	}
}

func TestLedger_LoadFailureStartsEmpty(t *testing.T) {
	repo := &flakyRepo{loadErr: errors.New("invalid character 'x' looking for beginning of value")}
	s := newTestLedger(t, repo)

	if got := s.Aggregates().Count; got != 0 {
		t.Fatalf("expected empty ledger, got %d", got)
	}
}

func TestLedger_LoadSkipsInvalidRecords(t *testing.T) {
	good := core.Transaction{ID: "a", Amount: money(3), Type: core.TypeExpense, Category: core.CategoryFood, Note: "x", Date: core.NewDate(2024, time.May, 1)}
	bad := core.Transaction{ID: "b", Type: "REFUND", Date: core.NewDate(2024, time.May, 1)}
	s := newTestLedger(t, memory.New(good, bad))

	snap := s.Snapshot()
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "a" {
		t.Fatalf("expected only the valid record, got %+v", snap.Transactions)
	}
}

func TestLedger_FailedSaveLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{}
	pub := &recordingPublisher{}
	s := newTestLedger(t, repo, WithPublisher(pub))
	tx, _ := s.Add(ctx, expense(10, core.CategoryFood, "a"))

	repo.saveErr = errors.New("disk full")
	before := s.Snapshot()

	if _, err := s.Add(ctx, expense(5, core.CategoryFood, "b")); err == nil {
		t.Fatal("expected add to fail")
	}
	if _, err := s.Delete(ctx, tx.ID); err == nil {
		t.Fatal("expected delete to fail")
	}
	if _, err := s.UpdateNote(ctx, tx.ID, "c"); err == nil {
		t.Fatal("expected note update to fail")
	}
	if _, err := s.Clear(ctx); err == nil {
		t.Fatal("expected clear to fail")
	}

	after := s.Snapshot()
	if len(after.Transactions) != 1 || after.Transactions[0].Note != "a" || after.Version != before.Version {
		t.Fatalf("state changed after failed saves: %+v", after)
	}
	if len(pub.kinds()) != 1 {
		t.Fatalf("expected only the first event, got %v", pub.kinds())
	}
}

func TestLedger_EventsAndListeners(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestLedger(t, memory.New(), WithPublisher(pub))

	var changes []Change
	remove := s.OnChange(func(c Change) { changes = append(changes, c) })

	tx, err := s.Add(ctx, expense(10, core.CategoryFood, "a"))
	if err != nil {
		t.Fatalf("publish failure must not fail the add: %v", err)
	}
	_, _ = s.UpdateNote(ctx, tx.ID, "b")
	_, _ = s.Delete(ctx, tx.ID)
	_, _ = s.Add(ctx, expense(1, core.CategoryFood, "c"))
	_, _ = s.Clear(ctx)

	want := []events.Kind{events.KindAdded, events.KindNoteUpdated, events.KindDeleted, events.KindAdded, events.KindCleared}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d listener calls, got %d", len(want), len(changes))
	}
	if changes[0].Event.TransactionID != tx.ID || changes[0].Aggregates.Count != 1 {
		t.Fatalf("unexpected first change %+v", changes[0])
	}

	remove()
	_, _ = s.Add(ctx, expense(1, core.CategoryFood, "d"))
	if len(changes) != len(want) {
		t.Fatal("removed listener was called")
	}
}

func TestLedger_FilterAndCategoryTotals(t *testing.T) {
	ctx := context.Background()
	s := newTestLedger(t, memory.New())
	_, _ = s.Add(ctx, expense(58, core.CategoryTransport, "打车"))
	_, _ = s.Add(ctx, income(5000, core.CategorySalary, "工资"))
	_, _ = s.Add(ctx, expense(30, core.CategoryFood, "午饭"))

	got := s.Filter(core.Filter{Type: core.TypeOnlyExpense}, fixedNow)
	if len(got) != 2 || got[0].Note != "午饭" || got[1].Note != "打车" {
		t.Fatalf("unexpected filter result %+v", got)
	}

	totals := s.CategoryTotals()
	var sum core.Money
	for _, c := range totals {
		sum = sum.Add(c.Amount)
	}
	if !sum.Equal(s.Aggregates().Expense) {
		t.Fatalf("category sum %s != expense %s", sum, s.Aggregates().Expense)
	}
	if totals[0].Category != core.CategoryTransport {
		t.Fatalf("expected largest category first, got %s", totals[0].Category)
	}
}

func TestLedger_ConcurrentAdds(t *testing.T) {
	repo := memory.New()
	s := NewLedgerService(repo)
	s.Load(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Add(context.Background(), expense(1, core.CategoryFood, "x"))
		}()
	}
	wg.Wait()

	if got := s.Aggregates().Count; got != 20 {
		t.Fatalf("expected 20 transactions, got %d", got)
	}
	stored, _ := repo.LoadTransactions(context.Background())
	if len(stored) != 20 {
		t.Fatalf("expected 20 stored, got %d", len(stored))
	}
}
