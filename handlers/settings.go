package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"streamwise/config"
)

// SettingsHandler exposes the persisted server configuration. OnUpdate, when
// set, runs after a successful save so services that cache configuration can
// hot-reload.
type SettingsHandler struct {
	Manager  *config.Manager
	OnUpdate func(config.Settings)
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeSettingsError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	// Unknown fields are allowed so older clients keep working.
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeSettingsError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Manager.Save(s); err != nil {
		writeSettingsError(w, http.StatusInternalServerError, err)
		return
	}

	if h.OnUpdate != nil {
		h.OnUpdate(s)
		log.Printf("[settings] applied updated configuration")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func writeSettingsError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
