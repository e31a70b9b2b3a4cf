package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/infra"
)

// StatsProvider описывает контракт чтения агрегатов аудита из Postgres.
type StatsProvider interface {
	CountIncidentsSince(ctx context.Context, since time.Time) (int, error)
	HealthPenaltySince(ctx context.Context, since time.Time) (float64, error)
	CountDistinctAgents(ctx context.Context) (int, error)
}

// StatsService собирает health-скор организации. Формула: 100 минус
// накопленный штраф по инцидентам за 24 часа; ниже 70 — degraded.
type StatsService struct {
	repo StatsProvider
	rdb  *redis.Client
}

const (
	healthWindow      = 24 * time.Hour
	degradedThreshold = 70.0
)

func NewStatsService(repo StatsProvider, rdb *redis.Client) *StatsService {
	return &StatsService{repo: repo, rdb: rdb}
}

func (s *StatsService) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	since := time.Now().Add(-healthWindow)

	penalty, err := s.repo.HealthPenaltySince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("stats_service: health penalty: %w", err)
	}
	incidents, err := s.repo.CountIncidentsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("stats_service: incident count: %w", err)
	}
	agents, err := s.repo.CountDistinctAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats_service: agent count: %w", err)
	}

	// Карантин живет в Redis; недоступность Redis не валит весь дашборд
	quarantined := 0
	if s.rdb != nil {
		if n, err := s.rdb.SCard(ctx, infra.RedisKeyQuarantineAgents).Result(); err == nil {
			quarantined = int(n)
		}
	}

	score := 100.0 - penalty
	if score < 0 {
		score = 0
	}

	status := "healthy"
	if score < degradedThreshold {
		status = "degraded"
	}

	return &domain.GlobalStats{
		Status:            status,
		HealthScore:       score,
		AgentsSeen:        agents,
		Incidents24h:      incidents,
		QuarantinedAgents: quarantined,
	}, nil
}
