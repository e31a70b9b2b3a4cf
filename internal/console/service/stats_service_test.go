package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatsProvider struct {
	penalty   float64
	incidents int
	agents    int
}

func (s *stubStatsProvider) CountIncidentsSince(context.Context, time.Time) (int, error) {
	return s.incidents, nil
}

func (s *stubStatsProvider) HealthPenaltySince(context.Context, time.Time) (float64, error) {
	return s.penalty, nil
}

func (s *stubStatsProvider) CountDistinctAgents(context.Context) (int, error) {
	return s.agents, nil
}

func TestGetGlobalStats(t *testing.T) {
	tests := []struct {
		name       string
		penalty    float64
		wantScore  float64
		wantStatus string
	}{
		{"no_incidents", 0, 100, "healthy"},
		// Два инцидента 85 и 70: (85-40)*0.2 + (70-40)*0.2 = 15
		{"moderate_incidents", 15, 85, "healthy"},
		{"at_degraded_boundary", 30, 70, "healthy"},
		{"degraded", 30.5, 69.5, "degraded"},
		{"score_floor_is_zero", 150, 0, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewStatsService(&stubStatsProvider{penalty: tt.penalty, incidents: 4, agents: 2}, nil)

			stats, err := svc.GetGlobalStats(context.Background())
			require.NoError(t, err)

			assert.InDelta(t, tt.wantScore, stats.HealthScore, 0.001)
			assert.Equal(t, tt.wantStatus, stats.Status)
			assert.Equal(t, 4, stats.Incidents24h)
			assert.Equal(t, 2, stats.AgentsSeen)
		})
	}
}
