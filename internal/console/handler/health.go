package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/shieldforce/internal/domain"
)

// StatsService — что нам нужно от сервиса статистики
type StatsService interface {
	GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type HealthHandler struct {
	service StatsService
}

func NewHealthHandler(s StatsService) *HealthHandler {
	return &HealthHandler{service: s}
}

// GetHealth отдает health-скор организации за последние 24 часа.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetGlobalStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
