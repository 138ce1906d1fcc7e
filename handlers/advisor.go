package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"streamwise/internal/auth"
	"streamwise/services/advisor"
	"streamwise/services/appstate"
)

// AdvisorHandler serves the subscription optimizer suggestion, computed
// from the caller's current projected state.
type AdvisorHandler struct {
	Manager *appstate.Manager
	Advisor *advisor.Service
}

func NewAdvisorHandler(manager *appstate.Manager, advisorSvc *advisor.Service) *AdvisorHandler {
	return &AdvisorHandler{Manager: manager, Advisor: advisorSvc}
}

func (h *AdvisorHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r)
	if userID == "" {
		http.Error(w, "no authenticated user", http.StatusUnauthorized)
		return
	}

	ctrl, err := h.Manager.Controller(context.Background(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	state := ctrl.State()
	suggestion := h.Advisor.Suggest(state.Subscriptions, state.RecentUsage)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(suggestion)
}
