package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"streamwise/internal/auth"
	"streamwise/models"
	"streamwise/services/appstate"
)

// StateHandler exposes the per-user UI state: a point-in-time snapshot, a
// server-sent-events stream of snapshots, and the intent endpoints that
// feed the controller.
type StateHandler struct {
	Manager *appstate.Manager
}

func NewStateHandler(manager *appstate.Manager) *StateHandler {
	return &StateHandler{Manager: manager}
}

// controller resolves the caller's controller. Controllers outlive the
// request, so they attach to the background context rather than r.Context.
func (h *StateHandler) controller(r *http.Request) (*appstate.Controller, error) {
	userID := auth.GetUserID(r)
	if userID == "" {
		return nil, fmt.Errorf("no authenticated user")
	}
	return h.Manager.Controller(context.Background(), userID)
}

// Get returns the current snapshot.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ctrl.State())
}

// Stream pushes every state snapshot over server-sent events until the
// client disconnects or the controller closes.
func (h *StateHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, release := ctrl.Subscribe()
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(state)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// Search runs one enriched search synchronously and returns the results
// directly. The debounced state machine and the UI state are not touched.
func (h *StateHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	results, err := ctrl.Library().SearchTitles(r.Context(), term)
	if err != nil {
		http.Error(w, "search upstream failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// SetSearch records the search box content.
func (h *StateHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body struct {
		Term string `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctrl.SetSearchTerm(body.Term)
	w.WriteHeader(http.StatusAccepted)
}

// AddToWatchlist saves a search result to the watchlist.
func (h *StateHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body struct {
		ExternalID int    `json:"externalId"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	ctrl.AddToWatchlist(models.SearchResultTitle{ExternalID: body.ExternalID, Name: body.Name})
	w.WriteHeader(http.StatusAccepted)
}

// SetStatus moves a watchlist item through its lifecycle.
func (h *StateHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	itemID := strings.TrimSpace(mux.Vars(r)["itemID"])
	if itemID == "" {
		http.Error(w, "item id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Status models.WatchStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !body.Status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	ctrl.SetStatus(itemID, body.Status)
	w.WriteHeader(http.StatusAccepted)
}

// DeleteItem removes a watchlist item.
func (h *StateHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	itemID := strings.TrimSpace(mux.Vars(r)["itemID"])
	if itemID == "" {
		http.Error(w, "item id is required", http.StatusBadRequest)
		return
	}

	ctrl.DeleteItem(itemID)
	w.WriteHeader(http.StatusAccepted)
}

// ToggleSubscription flips one streaming service in the user's set.
func (h *StateHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	serviceID := strings.TrimSpace(mux.Vars(r)["serviceID"])
	if serviceID == "" {
		http.Error(w, "service id is required", http.StatusBadRequest)
		return
	}

	ctrl.ToggleSubscription(serviceID)
	w.WriteHeader(http.StatusAccepted)
}

// LogUsage records that the user opened a streaming service.
func (h *StateHandler) LogUsage(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	serviceID := strings.TrimSpace(mux.Vars(r)["serviceID"])
	if serviceID == "" {
		http.Error(w, "service id is required", http.StatusBadRequest)
		return
	}

	ctrl.LogUsage(serviceID)
	w.WriteHeader(http.StatusAccepted)
}
