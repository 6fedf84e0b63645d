package reports

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"financeai/internal/core"
)

// Period selects how far back a report reaches.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod validates a period string, defaulting to month when empty.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return Period(s), nil
	case "":
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown report period %q", s)
	}
}

func (p Period) cutoff(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodQuarter:
		return now.AddDate(0, -3, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// FilterByPeriod keeps transactions dated on or after the period cutoff.
// Transactions with unparseable dates are dropped.
func FilterByPeriod(transactions []core.Transaction, p Period, now time.Time) []core.Transaction {
	cutoff := p.cutoff(now)
	filtered := make([]core.Transaction, 0, len(transactions))
	for _, t := range transactions {
		ts, err := core.ParseDate(t.Date)
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// CategoryTotal is a user category with its accumulated spend.
type CategoryTotal struct {
	Category string
	Amount   float64
}

// TopCategories returns the n highest-spend categories, largest first.
// Ties break alphabetically so output is stable.
func TopCategories(transactions []core.Transaction, n int) []CategoryTotal {
	byCategory := make(map[string]float64)
	for _, t := range transactions {
		byCategory[t.Category] += t.Amount
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		totals = append(totals, CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Amount != totals[j].Amount {
			return totals[i].Amount > totals[j].Amount
		}
		return totals[i].Category < totals[j].Category
	})

	if len(totals) > n {
		totals = totals[:n]
	}
	return totals
}

// CSV renders transactions as a CSV document with a fixed header row.
// Text fields are always quoted.
func CSV(transactions []core.Transaction) string {
	var b strings.Builder
	b.WriteString("Date,Description,Category,Type,Amount,Notes\n")
	for _, t := range transactions {
		b.WriteString(strings.Join([]string{
			t.Date,
			quote(t.Description),
			quote(t.Category),
			string(t.Type),
			formatNumber(t.Amount),
			quote(t.Notes),
		}, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatNumber prints without trailing zeros, 45.5 not 45.50.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TextSummary renders a plain-text financial report for the period.
// Transactions are expected to be pre-filtered with FilterByPeriod.
func TextSummary(transactions []core.Transaction, monthlyIncome float64, currency string, p Period, now time.Time) string {
	symbol := core.CurrencySymbol(currency)

	var spending core.MonthlySpending
	for _, t := range transactions {
		spending.Accumulate(t)
	}
	totalSpent := spending.Total

	var b strings.Builder
	fmt.Fprintf(&b, "FINANCE REPORT - %s\n", strings.ToUpper(string(p)))
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format("2006-01-02"))

	b.WriteString("SUMMARY\n-------\n")
	fmt.Fprintf(&b, "Total Spent: %s%s\n", symbol, formatNumber(totalSpent))
	fmt.Fprintf(&b, "Monthly Income: %s%s\n", symbol, formatNumber(monthlyIncome))
	fmt.Fprintf(&b, "Savings: %s%s\n\n", symbol, formatNumber(monthlyIncome-totalSpent))

	b.WriteString("SPENDING BREAKDOWN\n------------------\n")
	fmt.Fprintf(&b, "Needs: %s%s (%.1f%%)\n", symbol, formatNumber(spending.Needs), share(spending.Needs, totalSpent))
	fmt.Fprintf(&b, "Wants: %s%s (%.1f%%)\n", symbol, formatNumber(spending.Wants), share(spending.Wants, totalSpent))
	fmt.Fprintf(&b, "Not Important: %s%s (%.1f%%)\n\n", symbol, formatNumber(spending.NotImportant), share(spending.NotImportant, totalSpent))

	b.WriteString("TOP CATEGORIES\n--------------\n")
	for i, cat := range TopCategories(transactions, 5) {
		fmt.Fprintf(&b, "%d. %s: %s%s\n", i+1, cat.Category, symbol, formatNumber(cat.Amount))
	}

	fmt.Fprintf(&b, "\nTRANSACTIONS (%d total)\n------------\n", len(transactions))
	listed := transactions
	if len(listed) > 20 {
		listed = listed[:20]
	}
	for _, t := range listed {
		fmt.Fprintf(&b, "%s - %s: %s%s (%s)\n", t.Date, t.Description, symbol, formatNumber(t.Amount), t.Category)
	}
	if rest := len(transactions) - len(listed); rest > 0 {
		fmt.Fprintf(&b, "... and %d more transactions\n", rest)
	}

	return b.String()
}

func share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
