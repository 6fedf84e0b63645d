package http

import (
	"errors"
	"log/slog"
	"net/http"

	"financeai/internal/core"
	"financeai/internal/kv"
	"financeai/internal/store"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	year, month, provided, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	if provided {
		writeJSON(w, http.StatusOK, s.store.TransactionsByMonth(r.Context(), year, month))
		return
	}
	writeJSON(w, http.StatusOK, s.store.Transactions(r.Context()))
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var input core.Transaction
	if !decodeBody(w, r, &input) {
		return
	}
	input.Description = sanitizeInput(input.Description)
	input.Category = sanitizeInput(input.Category)
	input.Notes = sanitizeInput(input.Notes)

	created, err := s.store.AddTransaction(r.Context(), input)
	if err != nil {
		writeStoreError(w, r, err, "failed to add transaction")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// transactionPatchInput mirrors store.TransactionPatch with JSON tags.
type transactionPatchInput struct {
	Amount      *float64   `json:"amount"`
	Category    *string    `json:"category"`
	Type        *core.Tier `json:"type"`
	Description *string    `json:"description"`
	Date        *string    `json:"date"`
	Notes       *string    `json:"notes"`
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/transactions/")
	if id == "" {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.updateTransaction(w, r, id)
	case http.MethodDelete:
		if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
			writeStoreError(w, r, err, "failed to delete transaction")
			return
		}
		// Deleting an unknown ID succeeds, the outcome is the same.
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var input transactionPatchInput
	if !decodeBody(w, r, &input) {
		return
	}

	patch := store.TransactionPatch{
		Amount:      input.Amount,
		Category:    input.Category,
		Type:        input.Type,
		Description: input.Description,
		Date:        input.Date,
		Notes:       input.Notes,
	}

	updated, found, err := s.store.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, r, err, "failed to update transaction")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	year, month, _, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	writeJSON(w, http.StatusOK, s.store.MonthlySpending(r.Context(), year, month))
}

// writeStoreError maps store and domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidTier),
		errors.Is(err, core.ErrInvalidPriority),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, kv.ErrStorageFull):
		writeError(w, http.StatusInsufficientStorage, "storage is full")
	default:
		slog.ErrorContext(r.Context(), "Store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
