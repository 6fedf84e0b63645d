package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"financeai/internal/kv"
	"financeai/internal/store"
)

// handleData serves and clears the whole aggregate.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.UserData(r.Context()))
	case http.MethodDelete:
		if err := s.store.ClearAllData(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Clear data failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to clear data")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// handleExport returns the aggregate as a downloadable JSON document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	doc, err := s.store.ExportData(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export data")
		return
	}

	filename := fmt.Sprintf("financeai-backup-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// handleImport replaces the aggregate with the posted JSON document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import payload too large")
		return
	}

	if err := s.store.ImportData(r.Context(), string(body)); err != nil {
		switch {
		case errors.Is(err, store.ErrImport):
			writeError(w, http.StatusBadRequest, "invalid import document")
		case errors.Is(err, kv.ErrStorageFull):
			writeError(w, http.StatusInsufficientStorage, "storage is full")
		default:
			slog.ErrorContext(r.Context(), "Import failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to import data")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"imported": true})
}
