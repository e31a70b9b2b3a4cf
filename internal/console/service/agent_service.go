package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/infra"
	"go.uber.org/zap"
)

// AgentService — административные операции над агентами. Единственный
// компонент системы, которому разрешено снимать карантин: Data Plane
// умеет только ставить его.
type AgentService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAgentService(rdb *redis.Client, logger *zap.Logger) *AgentService {
	return &AgentService{
		rdb:    rdb,
		logger: logger.Named("agent-service"),
	}
}

// ClearQuarantine снимает локаут: удаляет агента из L2 и рассылает сигнал
// "id:off" всем инстансам шлюза. Порядок важен: сначала персистентное
// состояние, потом сигнал — рестартовавший шлюз не должен перечитать
// устаревший set.
func (s *AgentService) ClearQuarantine(ctx context.Context, agentID string) error {
	if err := s.rdb.SRem(ctx, infra.RedisKeyQuarantineAgents, agentID).Err(); err != nil {
		return fmt.Errorf("agent_service: remove from quarantine set: %w", err)
	}

	if err := s.rdb.Publish(ctx, infra.RedisChanQuarantine, agentID+":off").Err(); err != nil {
		return fmt.Errorf("agent_service: publish clear signal: %w", err)
	}

	s.logger.Info("quarantine cleared", zap.String("agent_id", agentID))
	return nil
}

// QuarantinedAgents возвращает список агентов в локауте.
func (s *AgentService) QuarantinedAgents(ctx context.Context) ([]domain.Agent, error) {
	ids, err := s.rdb.SMembers(ctx, infra.RedisKeyQuarantineAgents).Result()
	if err != nil {
		return nil, fmt.Errorf("agent_service: list quarantine set: %w", err)
	}

	agents := make([]domain.Agent, 0, len(ids))
	for _, id := range ids {
		agents = append(agents, domain.Agent{ID: id, Status: domain.StatusQuarantine})
	}
	return agents, nil
}
