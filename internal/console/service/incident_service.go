package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/shieldforce/internal/domain"
)

// IncidentProvider описывает контракт чтения журнала инцидентов.
type IncidentProvider interface {
	ListIncidents(ctx context.Context, limit int) ([]domain.Incident, error)
}

type IncidentService struct {
	repo IncidentProvider
}

func NewIncidentService(repo IncidentProvider) *IncidentService {
	return &IncidentService{repo: repo}
}

// FetchIncidents отдает последние инциденты (BLOCK/QUARANTINE решения).
// Лимиты и дефолты инкапсулированы в репозитории.
func (s *IncidentService) FetchIncidents(ctx context.Context, limit int) ([]domain.Incident, error) {
	incidents, err := s.repo.ListIncidents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("incident_service: failed to fetch incidents: %w", err)
	}
	return incidents, nil
}
