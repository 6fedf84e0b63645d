package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Needs        Tier = "needs"
	Wants        Tier = "wants"
	NotImportant Tier = "notImportant"
)

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type (
	// Tier is one of the three spending classifications.
	Tier string

	// Priority ranks a savings goal.
	Priority string

	Transaction struct {
		ID          string  `json:"id"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Type        Tier    `json:"type"`
		Description string  `json:"description"`
		Date        string  `json:"date"`
		Notes       string  `json:"notes,omitempty"`
	}

	CategorySet struct {
		Needs        []string `json:"needs"`
		Wants        []string `json:"wants"`
		NotImportant []string `json:"notImportant"`
	}

	// OnboardingData is the singleton profile captured during onboarding.
	// MonthlyIncome and SavingsGoal are numeric text, as entered by the user.
	OnboardingData struct {
		MonthlyIncome string      `json:"monthlyIncome"`
		SavingsGoal   string      `json:"savingsGoal"`
		Currency      string      `json:"currency"`
		Categories    CategorySet `json:"categories"`
	}

	SavingsGoal struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		TargetAmount  float64  `json:"targetAmount"`
		CurrentAmount float64  `json:"currentAmount"`
		Category      string   `json:"category"`
		Priority      Priority `json:"priority"`
		TargetDate    string   `json:"targetDate"`
		CreatedAt     string   `json:"createdAt"`
	}

	// UserData is the aggregate root and the sole unit of persistence.
	UserData struct {
		Onboarding   *OnboardingData `json:"onboarding"`
		Transactions []Transaction   `json:"transactions"`
		SavingsGoals []SavingsGoal   `json:"savingsGoals"`
		LastUpdated  string          `json:"lastUpdated"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidTier      = errors.New("invalid spending tier")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
)

// IsValid reports whether t is one of the three known tiers.
func (t Tier) IsValid() bool {
	switch t {
	case Needs, Wants, NotImportant:
		return true
	}
	return false
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !t.Type.IsValid() {
		return ErrInvalidTier
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date != "" {
		if _, err := ParseDate(t.Date); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// Time returns the transaction timestamp. Records carry the date as text
// so exported data round-trips byte-for-byte.
func (t Transaction) Time() (time.Time, error) {
	return ParseDate(t.Date)
}

// InMonth reports whether the transaction falls in the given calendar month.
// Unparseable dates never match.
func (t Transaction) InMonth(year int, month time.Month) bool {
	ts, err := t.Time()
	if err != nil {
		return false
	}
	return ts.Year() == year && ts.Month() == month
}

func (g SavingsGoal) Validate() error {
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyName
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if !g.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if g.TargetDate != "" {
		if _, err := ParseDate(g.TargetDate); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

func (o OnboardingData) Validate() error {
	if _, err := ParseNumericText(o.MonthlyIncome); err != nil {
		return errors.New("invalid monthly income: " + err.Error())
	}
	if _, err := ParseNumericText(o.SavingsGoal); err != nil {
		return errors.New("invalid savings goal: " + err.Error())
	}
	return nil
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", s)
}
