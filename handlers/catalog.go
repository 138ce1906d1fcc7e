package handlers

import (
	"encoding/json"
	"net/http"

	"streamwise/models"
)

// CatalogHandler serves the static streaming-service catalog clients
// render their toggle rows from.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.StreamingServices)
}
