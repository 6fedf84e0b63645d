package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"financeai/internal/core"
	"financeai/internal/kv"
)

func newTestStore(opts ...Option) (*FinanceStore, *kv.Memory) {
	backend := kv.NewMemory()
	return New(backend, opts...), backend
}

func TestUserDataDefaultsWhenEmpty(t *testing.T) {
	s, _ := newTestStore()
	data := s.UserData(context.Background())

	if data.Onboarding != nil {
		t.Error("fresh aggregate should have nil onboarding")
	}
	if data.Transactions == nil || len(data.Transactions) != 0 {
		t.Errorf("fresh aggregate should have empty transactions, got %v", data.Transactions)
	}
	if data.SavingsGoals == nil || len(data.SavingsGoals) != 0 {
		t.Errorf("fresh aggregate should have empty goals, got %v", data.SavingsGoals)
	}
	if data.LastUpdated == "" {
		t.Error("fresh aggregate should carry a timestamp")
	}
}

func TestAddTransactionPrependsNewestFirst(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	t1, err := s.AddTransaction(ctx, core.Transaction{Amount: 100, Type: core.Needs, Description: "rent", Date: "2024-03-05"})
	if err != nil {
		t.Fatalf("add t1: %v", err)
	}
	t2, err := s.AddTransaction(ctx, core.Transaction{Amount: 50, Type: core.Wants, Description: "cinema", Date: "2024-03-20"})
	if err != nil {
		t.Fatalf("add t2: %v", err)
	}
	if t1.ID == t2.ID {
		t.Fatalf("IDs must be unique, both %q", t1.ID)
	}
	if !strings.HasPrefix(t1.ID, "txn_") {
		t.Errorf("unexpected ID shape %q", t1.ID)
	}

	got := s.Transactions(ctx)
	if len(got) != 2 || got[0].ID != t2.ID || got[1].ID != t1.ID {
		t.Fatalf("expected newest-first [%s %s], got %+v", t2.ID, t1.ID, got)
	}
}

func TestAddTransactionDefaultsDate(t *testing.T) {
	fixed := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(WithClock(func() time.Time { return fixed }))

	tx, err := s.AddTransaction(context.Background(), core.Transaction{Amount: 10, Type: core.Needs, Description: "bus"})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Date != "2024-03-10T12:00:00Z" {
		t.Errorf("date not defaulted to now: %q", tx.Date)
	}
}

func TestAddTransactionRejectsInvalid(t *testing.T) {
	s, _ := newTestStore()
	_, err := s.AddTransaction(context.Background(), core.Transaction{Amount: -3, Type: core.Needs, Description: "x"})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if got := s.Transactions(context.Background()); len(got) != 0 {
		t.Fatalf("rejected transaction must not be persisted: %+v", got)
	}
}

func TestDeleteTransactionIdempotent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	tx, _ := s.AddTransaction(ctx, core.Transaction{Amount: 1, Type: core.Needs, Description: "a", Date: "2024-01-01"})
	s.AddTransaction(ctx, core.Transaction{Amount: 2, Type: core.Wants, Description: "b", Date: "2024-01-02"})

	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	after := s.Transactions(ctx)
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	again := s.Transactions(ctx)

	if len(after) != 1 || len(again) != 1 || after[0].ID != again[0].ID {
		t.Fatalf("delete not idempotent: %+v vs %+v", after, again)
	}
	if err := s.DeleteTransaction(ctx, "missing"); err != nil {
		t.Fatalf("delete of unknown ID must be a no-op, got %v", err)
	}
}

func TestUpdateTransactionMergesPatch(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	tx, _ := s.AddTransaction(ctx, core.Transaction{Amount: 100, Type: core.Needs, Category: "Rent", Description: "march rent", Date: "2024-03-01"})

	amount := 120.0
	notes := "rent went up"
	got, found, err := s.UpdateTransaction(ctx, tx.ID, TransactionPatch{Amount: &amount, Notes: &notes})
	if err != nil || !found {
		t.Fatalf("update failed: found=%v err=%v", found, err)
	}
	if got.Amount != 120 || got.Notes != "rent went up" {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.Category != "Rent" || got.Description != "march rent" {
		t.Errorf("untouched fields changed: %+v", got)
	}

	stored := s.Transactions(ctx)[0]
	if stored.Amount != 120 {
		t.Errorf("update not persisted: %+v", stored)
	}

	_, found, err = s.UpdateTransaction(ctx, "missing", TransactionPatch{Amount: &amount})
	if err != nil || found {
		t.Errorf("unknown ID must be silent no-op: found=%v err=%v", found, err)
	}
}

func TestMonthlySpendingScenario(t *testing.T) {
	// Example scenario: empty store, one needs and one wants transaction
	// in March 2024.
	s, _ := newTestStore()
	ctx := context.Background()

	if _, err := s.AddTransaction(ctx, core.Transaction{Amount: 100, Type: core.Needs, Description: "groceries", Date: "2024-03-05"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTransaction(ctx, core.Transaction{Amount: 50, Type: core.Wants, Description: "cinema", Date: "2024-03-20"}); err != nil {
		t.Fatal(err)
	}

	got := s.MonthlySpending(ctx, 2024, time.March)
	want := core.MonthlySpending{Needs: 100, Wants: 50, NotImportant: 0, Total: 150}
	if got != want {
		t.Fatalf("MonthlySpending = %+v, want %+v", got, want)
	}

	if sum := got.Needs + got.Wants + got.NotImportant; sum != got.Total {
		t.Errorf("bucket sum %v != total %v", sum, got.Total)
	}

	empty := s.MonthlySpending(ctx, 2024, time.April)
	if empty.Total != 0 {
		t.Errorf("other month should be empty, got %+v", empty)
	}
}

func TestCurrentMonthHelpers(t *testing.T) {
	fixed := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	s, _ := newTestStore(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	s.AddTransaction(ctx, core.Transaction{Amount: 30, Type: core.Needs, Description: "now", Date: "2024-03-02"})
	s.AddTransaction(ctx, core.Transaction{Amount: 99, Type: core.Needs, Description: "past", Date: "2023-12-02"})

	if got := s.CurrentMonthTransactions(ctx); len(got) != 1 || got[0].Description != "now" {
		t.Fatalf("CurrentMonthTransactions = %+v", got)
	}
	if got := s.CurrentMonthSpending(ctx); got.Total != 30 {
		t.Fatalf("CurrentMonthSpending = %+v", got)
	}
}

func TestCurrencyNormalizationIdempotent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for _, currency := range []string{"USD", "EUR", "", "INR"} {
		err := s.SaveOnboardingData(ctx, core.OnboardingData{
			MonthlyIncome: "50000",
			SavingsGoal:   "10000",
			Currency:      currency,
		})
		if err != nil {
			t.Fatalf("save onboarding (currency %q): %v", currency, err)
		}
		ob := s.OnboardingData(ctx)
		if ob == nil || ob.Currency != "INR" {
			t.Fatalf("currency %q not normalized: %+v", currency, ob)
		}
	}
}

func TestCurrencySelfHealingOnRead(t *testing.T) {
	s, backend := newTestStore()
	ctx := context.Background()

	// Write an aggregate with a divergent currency directly to the slot,
	// bypassing the save-side normalization.
	raw, _ := json.Marshal(core.UserData{
		Onboarding:   &core.OnboardingData{MonthlyIncome: "100", SavingsGoal: "10", Currency: "USD"},
		Transactions: []core.Transaction{},
		SavingsGoals: []core.SavingsGoal{},
		LastUpdated:  "2024-01-01T00:00:00Z",
	})
	if err := backend.Set(ctx, DataKey, raw); err != nil {
		t.Fatal(err)
	}

	if got := s.UserData(ctx); got.Onboarding.Currency != "INR" {
		t.Fatalf("read did not correct currency: %q", got.Onboarding.Currency)
	}

	// The correction must have been persisted in place.
	persisted, err := backend.Get(ctx, DataKey)
	if err != nil {
		t.Fatal(err)
	}
	var stored core.UserData
	if err := json.Unmarshal(persisted, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.Onboarding.Currency != "INR" {
		t.Fatalf("correction not persisted: %q", stored.Onboarding.Currency)
	}
}

func TestConfigurableCurrency(t *testing.T) {
	s, _ := newTestStore(WithCurrency("EUR"))
	ctx := context.Background()

	if err := s.SaveOnboardingData(ctx, core.OnboardingData{MonthlyIncome: "100", SavingsGoal: "10", Currency: "USD"}); err != nil {
		t.Fatal(err)
	}
	if ob := s.OnboardingData(ctx); ob.Currency != "EUR" {
		t.Fatalf("expected configured currency EUR, got %q", ob.Currency)
	}
}

func TestBackupRecovery(t *testing.T) {
	s, backend := newTestStore()
	ctx := context.Background()

	// Save A then B: primary holds B, backup holds A.
	a, err := s.AddTransaction(ctx, core.Transaction{Amount: 10, Type: core.Needs, Description: "A", Date: "2024-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTransaction(ctx, core.Transaction{Amount: 20, Type: core.Wants, Description: "B", Date: "2024-01-02"}); err != nil {
		t.Fatal(err)
	}

	// Corrupt the primary slot.
	if err := backend.Set(ctx, DataKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	got := s.UserData(ctx)
	if len(got.Transactions) != 1 || got.Transactions[0].ID != a.ID {
		t.Fatalf("expected backup state [A], got %+v", got.Transactions)
	}

	// The backup must have been promoted: a second read returns A again
	// straight from the primary slot.
	again := s.UserData(ctx)
	if len(again.Transactions) != 1 || again.Transactions[0].ID != a.ID {
		t.Fatalf("promotion failed, second read got %+v", again.Transactions)
	}
	raw, err := backend.Get(ctx, DataKey)
	if err != nil {
		t.Fatalf("primary slot missing after promotion: %v", err)
	}
	var promoted core.UserData
	if err := json.Unmarshal(raw, &promoted); err != nil {
		t.Fatalf("primary slot still corrupt: %v", err)
	}
}

func TestBothSlotsCorruptFallsBackToDefault(t *testing.T) {
	s, backend := newTestStore()
	ctx := context.Background()

	backend.Set(ctx, DataKey, []byte("garbage"))
	backend.Set(ctx, BackupKey, []byte("also garbage"))

	got := s.UserData(ctx)
	if got.Onboarding != nil || len(got.Transactions) != 0 || len(got.SavingsGoals) != 0 {
		t.Fatalf("expected default aggregate, got %+v", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	s.SaveOnboardingData(ctx, core.OnboardingData{MonthlyIncome: "50000", SavingsGoal: "10000", Currency: "USD"})
	tx, _ := s.AddTransaction(ctx, core.Transaction{Amount: 250, Type: core.Wants, Category: "Dining", Description: "dinner", Date: "2024-03-08"})
	goal, _ := s.AddSavingsGoal(ctx, core.SavingsGoal{Name: "Trip", TargetAmount: 5000, CurrentAmount: 100, Priority: core.PriorityLow, TargetDate: "2025-01-01"})

	exported, err := s.ExportData(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(exported, "\n  ") {
		t.Error("export should be pretty-printed")
	}

	// Import into a fresh store.
	s2, _ := newTestStore()
	if err := s2.ImportData(ctx, exported); err != nil {
		t.Fatalf("import: %v", err)
	}

	got := s2.UserData(ctx)
	if got.Onboarding == nil || got.Onboarding.MonthlyIncome != "50000" {
		t.Fatalf("onboarding lost: %+v", got.Onboarding)
	}
	if got.Onboarding.Currency != "INR" {
		t.Fatalf("import must force currency, got %q", got.Onboarding.Currency)
	}
	if len(got.Transactions) != 1 || got.Transactions[0] != tx {
		t.Fatalf("transactions lost: %+v", got.Transactions)
	}
	if len(got.SavingsGoals) != 1 || got.SavingsGoals[0] != goal {
		t.Fatalf("goals lost: %+v", got.SavingsGoals)
	}
	if got.LastUpdated == "" {
		t.Error("import must refresh lastUpdated")
	}
}

func TestImportRejectsBadPayloads(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for _, payload := range []string{"", "not json", "[1,2,3]", `"a string"`, "42", "null"} {
		if err := s.ImportData(ctx, payload); !errors.Is(err, ErrImport) {
			t.Errorf("payload %q: expected ErrImport, got %v", payload, err)
		}
	}

	// Object-shaped input is accepted even when fields are missing.
	if err := s.ImportData(ctx, `{"unrelated": true}`); err != nil {
		t.Errorf("object payload rejected: %v", err)
	}
	if got := s.UserData(ctx); got.Transactions == nil {
		t.Error("imported aggregate should normalize nil lists")
	}
}

func TestSaveSurfacesStorageFull(t *testing.T) {
	backend := kv.NewMemoryWithLimit(64)
	s := New(backend)
	ctx := context.Background()

	_, err := s.AddTransaction(ctx, core.Transaction{
		Amount:      10,
		Type:        core.Needs,
		Description: strings.Repeat("x", 100),
		Date:        "2024-01-01",
	})
	if !errors.Is(err, kv.ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}
}

func TestSavingsGoalLifecycle(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	g, err := s.AddSavingsGoal(ctx, core.SavingsGoal{
		Name:          "Emergency fund",
		TargetAmount:  1000,
		CurrentAmount: 1500, // over target, must be clamped
		Priority:      core.PriorityHigh,
		TargetDate:    "2025-06-30",
	})
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}
	if !strings.HasPrefix(g.ID, "goal_") || g.CreatedAt == "" {
		t.Errorf("goal metadata not generated: %+v", g)
	}
	if g.CurrentAmount != 1000 {
		t.Errorf("current amount not clamped to target: %v", g.CurrentAmount)
	}

	deposit := 400.0
	updated, found, err := s.UpdateSavingsGoal(ctx, g.ID, GoalPatch{CurrentAmount: &deposit})
	if err != nil || !found {
		t.Fatalf("update goal: found=%v err=%v", found, err)
	}
	if updated.CurrentAmount != 400 {
		t.Errorf("deposit not applied: %+v", updated)
	}

	over := 9999.0
	updated, _, _ = s.UpdateSavingsGoal(ctx, g.ID, GoalPatch{CurrentAmount: &over})
	if updated.CurrentAmount != updated.TargetAmount {
		t.Errorf("deposit above target not clamped: %+v", updated)
	}

	if err := s.DeleteSavingsGoal(ctx, g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if err := s.DeleteSavingsGoal(ctx, g.ID); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if goals := s.SavingsGoals(ctx); len(goals) != 0 {
		t.Fatalf("goal not deleted: %+v", goals)
	}
}

func TestClearAllData(t *testing.T) {
	s, backend := newTestStore()
	ctx := context.Background()

	s.AddTransaction(ctx, core.Transaction{Amount: 1, Type: core.Needs, Description: "x", Date: "2024-01-01"})
	s.AddTransaction(ctx, core.Transaction{Amount: 2, Type: core.Needs, Description: "y", Date: "2024-01-02"})

	if err := s.ClearAllData(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := backend.Get(ctx, DataKey); !errors.Is(err, kv.ErrNotFound) {
		t.Error("primary slot should be gone")
	}
	if _, err := backend.Get(ctx, BackupKey); !errors.Is(err, kv.ErrNotFound) {
		t.Error("backup slot should be gone")
	}
	if got := s.UserData(ctx); len(got.Transactions) != 0 {
		t.Fatalf("expected empty aggregate after clear, got %+v", got.Transactions)
	}
}

type recordingPublisher struct {
	kinds []string
}

func (p *recordingPublisher) PublishDataChanged(_ context.Context, kind, _ string) error {
	p.kinds = append(p.kinds, kind)
	return nil
}

func TestMutationsPublishChangeEvents(t *testing.T) {
	pub := &recordingPublisher{}
	backend := kv.NewMemory()
	s := New(backend, WithPublisher(pub))
	ctx := context.Background()

	tx, _ := s.AddTransaction(ctx, core.Transaction{Amount: 5, Type: core.Needs, Description: "x", Date: "2024-01-01"})
	s.DeleteTransaction(ctx, tx.ID)
	s.DeleteTransaction(ctx, tx.ID) // no-op, no event

	want := []string{"transaction.added", "transaction.deleted"}
	if len(pub.kinds) != len(want) {
		t.Fatalf("events = %v, want %v", pub.kinds, want)
	}
	for i := range want {
		if pub.kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", pub.kinds, want)
		}
	}
}

type failingPublisher struct{}

func (failingPublisher) PublishDataChanged(context.Context, string, string) error {
	return errors.New("broker down")
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	s := New(kv.NewMemory(), WithPublisher(failingPublisher{}))
	if _, err := s.AddTransaction(context.Background(), core.Transaction{Amount: 5, Type: core.Needs, Description: "x", Date: "2024-01-01"}); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}
