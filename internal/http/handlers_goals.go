package http

import (
	"net/http"

	"financeai/internal/core"
	"financeai/internal/store"
)

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.SavingsGoals(r.Context()))
	case http.MethodPost:
		s.createGoal(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var input core.SavingsGoal
	if !decodeBody(w, r, &input) {
		return
	}
	input.Name = sanitizeInput(input.Name)
	input.Category = sanitizeInput(input.Category)

	created, err := s.store.AddSavingsGoal(r.Context(), input)
	if err != nil {
		writeStoreError(w, r, err, "failed to add savings goal")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// goalPatchInput mirrors store.GoalPatch with JSON tags.
type goalPatchInput struct {
	Name          *string        `json:"name"`
	TargetAmount  *float64       `json:"targetAmount"`
	CurrentAmount *float64       `json:"currentAmount"`
	Category      *string        `json:"category"`
	Priority      *core.Priority `json:"priority"`
	TargetDate    *string        `json:"targetDate"`
}

func (s *Server) handleGoalByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/goals/")
	if id == "" {
		writeError(w, http.StatusNotFound, "savings goal not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.updateGoal(w, r, id)
	case http.MethodDelete:
		if err := s.store.DeleteSavingsGoal(r.Context(), id); err != nil {
			writeStoreError(w, r, err, "failed to delete savings goal")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request, id string) {
	var input goalPatchInput
	if !decodeBody(w, r, &input) {
		return
	}

	patch := store.GoalPatch{
		Name:          input.Name,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: input.CurrentAmount,
		Category:      input.Category,
		Priority:      input.Priority,
		TargetDate:    input.TargetDate,
	}

	updated, found, err := s.store.UpdateSavingsGoal(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, r, err, "failed to update savings goal")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "savings goal not found")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ob := s.store.OnboardingData(r.Context())
		if ob == nil {
			writeError(w, http.StatusNotFound, "onboarding not completed")
			return
		}
		writeJSON(w, http.StatusOK, ob)
	case http.MethodPut, http.MethodPost:
		var input core.OnboardingData
		if !decodeBody(w, r, &input) {
			return
		}
		if err := s.store.SaveOnboardingData(r.Context(), input); err != nil {
			writeStoreError(w, r, err, "failed to save onboarding data")
			return
		}
		writeJSON(w, http.StatusOK, s.store.OnboardingData(r.Context()))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost)
	}
}
