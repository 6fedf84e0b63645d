// Package store implements the persistence and monthly-aggregation core.
//
// FinanceStore is the sole gateway between collaborators and persisted
// financial state. Every operation re-reads the full aggregate from the
// backend, mutates it in memory and writes it back, rotating the previous
// aggregate into a single-generation backup slot first. Read operations
// never fail: a corrupt primary slot falls back to the backup (which is
// then promoted), and a corrupt backup falls back to an empty aggregate.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"financeai/internal/core"
	"financeai/internal/kv"
)

const (
	// DataKey is the primary storage slot.
	DataKey = "financeai_data"
	// BackupKey holds the aggregate one generation behind primary.
	BackupKey = "financeai_backup"

	// DefaultCurrency is forced onto the onboarding record on every save
	// and read unless overridden via WithCurrency.
	DefaultCurrency = "INR"
)

var (
	// ErrSerialization is returned when the aggregate cannot be encoded.
	ErrSerialization = errors.New("serialize aggregate")

	// ErrImport is returned when an import payload is not a JSON object.
	ErrImport = errors.New("import payload is not a JSON object")
)

// Publisher emits best-effort data-change events after successful writes.
type Publisher interface {
	PublishDataChanged(ctx context.Context, kind, entityID string) error
}

// TransactionPatch carries the fields of a partial transaction update.
// Nil fields are left untouched.
type TransactionPatch struct {
	Amount      *float64
	Category    *string
	Type        *core.Tier
	Description *string
	Date        *string
	Notes       *string
}

// GoalPatch carries the fields of a partial savings-goal update.
type GoalPatch struct {
	Name          *string
	TargetAmount  *float64
	CurrentAmount *float64
	Category      *string
	Priority      *core.Priority
	TargetDate    *string
}

// FinanceStore owns the read-modify-write cycle and the backup policy.
type FinanceStore struct {
	backend  kv.Store
	pub      Publisher
	currency string
	now      func() time.Time
}

type Option func(*FinanceStore)

// WithCurrency overrides the currency code forced onto onboarding data.
func WithCurrency(code string) Option {
	return func(s *FinanceStore) { s.currency = code }
}

// WithClock injects the time source, used by tests for stable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *FinanceStore) { s.now = now }
}

// WithPublisher attaches a change-event publisher. Publish failures are
// logged and never propagated to callers.
func WithPublisher(p Publisher) Option {
	return func(s *FinanceStore) { s.pub = p }
}

func New(backend kv.Store, opts ...Option) *FinanceStore {
	s := &FinanceStore{
		backend:  backend,
		currency: DefaultCurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserData loads the aggregate from the primary slot. A corrupt or missing
// primary is recovered from the backup slot (promoted on success); if both
// fail a fresh empty aggregate is returned. Never returns an error.
func (s *FinanceStore) UserData(ctx context.Context) core.UserData {
	raw, err := s.backend.Get(ctx, DataKey)
	if err == nil {
		var data core.UserData
		if jsonErr := json.Unmarshal(raw, &data); jsonErr == nil {
			s.normalize(&data)
			// Self-healing migration: persist a corrected currency in place.
			if data.Onboarding != nil && data.Onboarding.Currency != s.currency {
				data.Onboarding.Currency = s.currency
				if saveErr := s.SaveUserData(ctx, data); saveErr != nil {
					slog.WarnContext(ctx, "Failed to persist currency correction", "error", saveErr)
				}
			}
			return data
		} else {
			slog.ErrorContext(ctx, "Corrupt primary slot, trying backup", "error", jsonErr)
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed reading primary slot, trying backup", "error", err)
	}

	if backup, err := s.backend.Get(ctx, BackupKey); err == nil {
		var data core.UserData
		if jsonErr := json.Unmarshal(backup, &data); jsonErr == nil {
			s.normalize(&data)
			// Promote the backup to primary.
			if saveErr := s.SaveUserData(ctx, data); saveErr != nil {
				slog.WarnContext(ctx, "Failed to promote backup slot", "error", saveErr)
			} else {
				slog.InfoContext(ctx, "Recovered aggregate from backup slot")
			}
			return data
		} else {
			slog.ErrorContext(ctx, "Corrupt backup slot", "error", jsonErr)
		}
	}

	return core.UserData{
		Onboarding:   nil,
		Transactions: []core.Transaction{},
		SavingsGoals: []core.SavingsGoal{},
		LastUpdated:  s.now().UTC().Format(time.RFC3339),
	}
}

// SaveUserData rotates the current primary slot into the backup slot, then
// writes the aggregate with a fresh timestamp and the forced currency.
// Returns kv.ErrStorageFull or ErrSerialization so callers can react.
func (s *FinanceStore) SaveUserData(ctx context.Context, data core.UserData) error {
	// Single-generation backup: best effort, skipped when primary is empty.
	if current, err := s.backend.Get(ctx, DataKey); err == nil {
		if err := s.backend.Set(ctx, BackupKey, current); err != nil {
			slog.WarnContext(ctx, "Failed to write backup slot", "error", err)
		}
	}

	s.normalize(&data)
	if data.Onboarding != nil {
		data.Onboarding.Currency = s.currency
	}
	data.LastUpdated = s.now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := s.backend.Set(ctx, DataKey, raw); err != nil {
		slog.ErrorContext(ctx, "Failed to write primary slot", "error", err)
		return err
	}
	return nil
}

// normalize replaces nil lists so the aggregate always marshals with
// arrays, matching the export format.
func (s *FinanceStore) normalize(data *core.UserData) {
	if data.Transactions == nil {
		data.Transactions = []core.Transaction{}
	}
	if data.SavingsGoals == nil {
		data.SavingsGoals = []core.SavingsGoal{}
	}
}

// AddTransaction generates an ID, defaults the date to now, prepends the
// record (newest first) and persists.
func (s *FinanceStore) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := s.now()
	t.ID = newID("txn", now)
	if t.Date == "" {
		t.Date = now.UTC().Format(time.RFC3339)
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	data := s.UserData(ctx)
	data.Transactions = append([]core.Transaction{t}, data.Transactions...)
	if err := s.SaveUserData(ctx, data); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction added",
		"id", t.ID,
		"amount", t.Amount,
		"type", string(t.Type))
	s.publish(ctx, "transaction.added", t.ID)
	return t, nil
}

func (s *FinanceStore) Transactions(ctx context.Context) []core.Transaction {
	return s.UserData(ctx).Transactions
}

// TransactionsByMonth filters the full list by calendar month. O(n) scan,
// no index maintained.
func (s *FinanceStore) TransactionsByMonth(ctx context.Context, year int, month time.Month) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.Transactions(ctx) {
		if t.InMonth(year, month) {
			out = append(out, t)
		}
	}
	return out
}

func (s *FinanceStore) CurrentMonthTransactions(ctx context.Context) []core.Transaction {
	now := s.now()
	return s.TransactionsByMonth(ctx, now.Year(), now.Month())
}

// DeleteTransaction removes by exact ID match. A missing ID is a silent
// no-op and does not rewrite the aggregate.
func (s *FinanceStore) DeleteTransaction(ctx context.Context, id string) error {
	data := s.UserData(ctx)
	kept := data.Transactions[:0:0]
	for _, t := range data.Transactions {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(data.Transactions) {
		return nil
	}
	data.Transactions = kept
	if err := s.SaveUserData(ctx, data); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publish(ctx, "transaction.deleted", id)
	return nil
}

// UpdateTransaction shallow-merges the patch into the matching record.
// The found flag is false (with no error) when the ID is absent.
func (s *FinanceStore) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, bool, error) {
	data := s.UserData(ctx)
	for i := range data.Transactions {
		if data.Transactions[i].ID != id {
			continue
		}
		t := data.Transactions[i]
		if patch.Amount != nil {
			t.Amount = *patch.Amount
		}
		if patch.Category != nil {
			t.Category = *patch.Category
		}
		if patch.Type != nil {
			t.Type = *patch.Type
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Date != nil {
			t.Date = *patch.Date
		}
		if patch.Notes != nil {
			t.Notes = *patch.Notes
		}
		if err := t.Validate(); err != nil {
			return core.Transaction{}, true, err
		}
		data.Transactions[i] = t
		if err := s.SaveUserData(ctx, data); err != nil {
			return core.Transaction{}, true, err
		}
		s.publish(ctx, "transaction.updated", id)
		return t, true, nil
	}
	return core.Transaction{}, false, nil
}

// MonthlySpending recomputes per-tier totals from the raw transaction
// list on every call. No running totals are persisted, which keeps the
// numbers correct after any edit or delete.
func (s *FinanceStore) MonthlySpending(ctx context.Context, year int, month time.Month) core.MonthlySpending {
	return core.SummarizeMonth(s.Transactions(ctx), year, month)
}

func (s *FinanceStore) CurrentMonthSpending(ctx context.Context) core.MonthlySpending {
	now := s.now()
	return s.MonthlySpending(ctx, now.Year(), now.Month())
}

// SaveOnboardingData replaces the onboarding record wholesale. The
// currency is forced regardless of what the caller supplied.
func (s *FinanceStore) SaveOnboardingData(ctx context.Context, ob core.OnboardingData) error {
	if err := ob.Validate(); err != nil {
		return err
	}
	ob.Currency = s.currency
	data := s.UserData(ctx)
	data.Onboarding = &ob
	if err := s.SaveUserData(ctx, data); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Onboarding data saved", "currency", ob.Currency)
	s.publish(ctx, "onboarding.saved", "")
	return nil
}

// OnboardingData returns the onboarding record, currency forced, or nil
// when onboarding has not happened yet.
func (s *FinanceStore) OnboardingData(ctx context.Context) *core.OnboardingData {
	ob := s.UserData(ctx).Onboarding
	if ob == nil {
		return nil
	}
	out := *ob
	out.Currency = s.currency
	return &out
}

// AddSavingsGoal generates ID and creation timestamp, clamps the current
// amount and appends the goal.
func (s *FinanceStore) AddSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	now := s.now()
	g.ID = newID("goal", now)
	g.CreatedAt = now.UTC().Format(time.RFC3339)
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	clampGoal(&g)

	data := s.UserData(ctx)
	data.SavingsGoals = append(data.SavingsGoals, g)
	if err := s.SaveUserData(ctx, data); err != nil {
		return core.SavingsGoal{}, err
	}

	slog.InfoContext(ctx, "Savings goal added", "id", g.ID, "name", g.Name, "target", g.TargetAmount)
	s.publish(ctx, "goal.added", g.ID)
	return g, nil
}

func (s *FinanceStore) SavingsGoals(ctx context.Context) []core.SavingsGoal {
	return s.UserData(ctx).SavingsGoals
}

// UpdateSavingsGoal shallow-merges the patch, clamping the current amount
// to the target. A missing ID is a silent no-op (found = false).
func (s *FinanceStore) UpdateSavingsGoal(ctx context.Context, id string, patch GoalPatch) (core.SavingsGoal, bool, error) {
	data := s.UserData(ctx)
	for i := range data.SavingsGoals {
		if data.SavingsGoals[i].ID != id {
			continue
		}
		g := data.SavingsGoals[i]
		if patch.Name != nil {
			g.Name = *patch.Name
		}
		if patch.TargetAmount != nil {
			g.TargetAmount = *patch.TargetAmount
		}
		if patch.CurrentAmount != nil {
			g.CurrentAmount = *patch.CurrentAmount
		}
		if patch.Category != nil {
			g.Category = *patch.Category
		}
		if patch.Priority != nil {
			g.Priority = *patch.Priority
		}
		if patch.TargetDate != nil {
			g.TargetDate = *patch.TargetDate
		}
		if err := g.Validate(); err != nil {
			return core.SavingsGoal{}, true, err
		}
		clampGoal(&g)
		data.SavingsGoals[i] = g
		if err := s.SaveUserData(ctx, data); err != nil {
			return core.SavingsGoal{}, true, err
		}
		s.publish(ctx, "goal.updated", id)
		return g, true, nil
	}
	return core.SavingsGoal{}, false, nil
}

func (s *FinanceStore) DeleteSavingsGoal(ctx context.Context, id string) error {
	data := s.UserData(ctx)
	kept := data.SavingsGoals[:0:0]
	for _, g := range data.SavingsGoals {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(data.SavingsGoals) {
		return nil
	}
	data.SavingsGoals = kept
	if err := s.SaveUserData(ctx, data); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Savings goal deleted", "id", id)
	s.publish(ctx, "goal.deleted", id)
	return nil
}

// ExportData serializes the full aggregate as pretty-printed JSON.
func (s *FinanceStore) ExportData(ctx context.Context) (string, error) {
	raw, err := json.MarshalIndent(s.UserData(ctx), "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(raw), nil
}

// ImportData replaces the aggregate with the parsed payload. The only
// structural requirement is that the payload is a JSON object; fields
// that do not match the aggregate shape decode to their zero values.
func (s *FinanceStore) ImportData(ctx context.Context, jsonText string) error {
	var probe any
	if err := json.Unmarshal([]byte(jsonText), &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrImport, err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return ErrImport
	}

	var data core.UserData
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		return fmt.Errorf("%w: %v", ErrImport, err)
	}
	if err := s.SaveUserData(ctx, data); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Aggregate imported",
		"transactions", len(data.Transactions),
		"goals", len(data.SavingsGoals))
	s.publish(ctx, "data.imported", "")
	return nil
}

// ClearAllData removes both slots unconditionally.
func (s *FinanceStore) ClearAllData(ctx context.Context) error {
	if err := s.backend.Delete(ctx, DataKey); err != nil {
		return fmt.Errorf("clear primary slot: %w", err)
	}
	if err := s.backend.Delete(ctx, BackupKey); err != nil {
		return fmt.Errorf("clear backup slot: %w", err)
	}
	slog.InfoContext(ctx, "All data cleared")
	s.publish(ctx, "data.cleared", "")
	return nil
}

func (s *FinanceStore) publish(ctx context.Context, kind, entityID string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishDataChanged(ctx, kind, entityID); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event", "kind", kind, "error", err)
	}
}

func clampGoal(g *core.SavingsGoal) {
	if g.CurrentAmount < 0 {
		g.CurrentAmount = 0
	}
	if g.CurrentAmount > g.TargetAmount {
		g.CurrentAmount = g.TargetAmount
	}
}
