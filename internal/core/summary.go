package core

import "time"

// MonthlySpending holds per-tier totals for one calendar month.
// It is always recomputed from the raw transaction list.
type MonthlySpending struct {
	Needs        float64 `json:"needs"`
	Wants        float64 `json:"wants"`
	NotImportant float64 `json:"notImportant"`
	Total        float64 `json:"total"`
}

// Accumulate adds the transaction amount to its tier bucket and the total.
// Transactions with an unknown tier are skipped so the bucket sum always
// equals the total.
func (s *MonthlySpending) Accumulate(t Transaction) {
	switch t.Type {
	case Needs:
		s.Needs += t.Amount
	case Wants:
		s.Wants += t.Amount
	case NotImportant:
		s.NotImportant += t.Amount
	default:
		return
	}
	s.Total += t.Amount
}

// SummarizeMonth computes spending buckets over the transactions that fall
// in the given calendar month. O(n) over the full list.
func SummarizeMonth(transactions []Transaction, year int, month time.Month) MonthlySpending {
	var s MonthlySpending
	for _, t := range transactions {
		if t.InMonth(year, month) {
			s.Accumulate(t)
		}
	}
	return s
}
