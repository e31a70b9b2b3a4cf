package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/shieldforce/internal/infra"
	"go.uber.org/zap"
)

// QuarantineManager — реестр агентов в локауте. Два состояния: ACTIVE и
// QUARANTINED. Вход — решение Risk Scorer (порог или секрет-override).
// Выход из карантина изнутри Data Plane НЕДОСТИЖИМ: сигнал "id:off" шлет
// только Console (админ). Горячий путь читает L1 (RAM), Redis — это L2 для
// рестартов и синхронизации между инстансами.
type QuarantineManager struct {
	mu               sync.RWMutex
	quarantineAgents map[string]struct{}
	rdb              *redis.Client
	logger           *zap.Logger
}

func NewQuarantineManager(rdb *redis.Client, logger *zap.Logger) *QuarantineManager {
	return &QuarantineManager{
		quarantineAgents: make(map[string]struct{}),
		rdb:              rdb,
		logger:           logger.Named("quarantine"),
	}
}

// Init загружает состояние карантина из Redis при старте шлюза.
func (m *QuarantineManager) Init(ctx context.Context) error {
	agents, err := m.rdb.SMembers(ctx, infra.RedisKeyQuarantineAgents).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, id := range agents {
		m.quarantineAgents[id] = struct{}{}
	}
	m.mu.Unlock()

	if len(agents) > 0 {
		m.logger.Info("quarantine state restored", zap.Int("agents", len(agents)))
	}
	return nil
}

// StartListener подписывается на переходы карантина в реальном времени.
// Единственный путь QUARANTINED -> ACTIVE — сигнал "id:off" от Console.
func (m *QuarantineManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanQuarantine,
		func() error { return m.Init(ctx) }, // Переподключение — пересинхронизация
		func(id string, status bool) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if status {
				m.quarantineAgents[id] = struct{}{}
			} else {
				delete(m.quarantineAgents, id)
				m.logger.Info("quarantine cleared by administrator", zap.String("agent_id", id))
			}
		},
	)
}

// Quarantine переводит агента в локаут: L1 сразу, L2 и сигнал — best-effort.
// Недоступность Redis не отменяет локальный переход (безопасность важнее
// консистентности кэшей).
func (m *QuarantineManager) Quarantine(ctx context.Context, agentID string) {
	m.mu.Lock()
	m.quarantineAgents[agentID] = struct{}{}
	m.mu.Unlock()

	if err := m.rdb.SAdd(ctx, infra.RedisKeyQuarantineAgents, agentID).Err(); err != nil {
		m.logger.Warn("failed to persist quarantine to Redis", zap.String("agent_id", agentID), zap.Error(err))
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanQuarantine, agentID+":on").Err(); err != nil {
		m.logger.Warn("quarantine signal delivery failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// IsQuarantined — максимально быстрый метод для проверки в Hot Path
func (m *QuarantineManager) IsQuarantined(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.quarantineAgents[agentID]
	return ok
}

// Count — сколько агентов сейчас в карантине (метрики/статистика).
func (m *QuarantineManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quarantineAgents)
}
