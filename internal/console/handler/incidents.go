package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/shieldforce/internal/domain"
)

type IncidentService interface {
	FetchIncidents(ctx context.Context, limit int) ([]domain.Incident, error)
}

type IncidentHandler struct {
	service IncidentService
}

func NewIncidentHandler(s IncidentService) *IncidentHandler {
	return &IncidentHandler{service: s}
}

// List отдает последние инциденты, опционально ?limit=N.
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	incidents, err := h.service.FetchIncidents(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to fetch incidents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(incidents)
}
