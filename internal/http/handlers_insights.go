package http

import (
	"log/slog"
	"net/http"
	"time"

	"financeai/internal/core"
	"financeai/internal/insights"
	"financeai/internal/reports"
)

// handleInsights runs the AI advisor over the stored data.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	data := s.store.UserData(r.Context())

	req := insights.Request{
		Transactions: data.Transactions,
	}
	if data.Onboarding != nil {
		req.Currency = data.Onboarding.Currency
		req.Categories = data.Onboarding.Categories
		if v, err := core.ParseNumericText(data.Onboarding.MonthlyIncome); err == nil {
			req.MonthlyIncome = v
		}
		if v, err := core.ParseNumericText(data.Onboarding.SavingsGoal); err == nil {
			req.SavingsGoal = v
		}
	}

	result, err := s.advisor.Generate(r.Context(), req)
	if err != nil {
		slog.ErrorContext(r.Context(), "Insights generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to generate insights")
		return
	}

	writeJSON(w, http.StatusOK, map[string]insights.Insights{"insights": result})
}

func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	period, err := reports.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	filtered := reports.FilterByPeriod(s.store.Transactions(r.Context()), period, now)

	filename := "finance-report-" + string(period) + "-" + now.Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reports.CSV(filtered)))
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	period, err := reports.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data := s.store.UserData(r.Context())
	currency := ""
	income := 0.0
	if data.Onboarding != nil {
		currency = data.Onboarding.Currency
		if v, parseErr := core.ParseNumericText(data.Onboarding.MonthlyIncome); parseErr == nil {
			income = v
		}
	}

	now := time.Now()
	filtered := reports.FilterByPeriod(data.Transactions, period, now)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reports.TextSummary(filtered, income, currency, period, now)))
}
