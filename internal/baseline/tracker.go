package baseline

import (
	"sync"
	"time"

	"github.com/xela07ax/shieldforce/internal/infra"
	"go.uber.org/zap"
)

// Behavior DNA: скользящая статистика по каждому агенту и детект отклонений.
// Инвариант порядка критичен: сначала сравниваем с ДО-обновленным состоянием,
// потом вкатываем наблюдение в статистику. Наоборот нельзя — аномалия станет
// невидимой на фоне самой себя.

// Flag — один независимый признак отклонения от baseline.
type Flag string

const (
	FlagNewDomain      Flag = "new_domain"
	FlagNewEndpoint    Flag = "new_api"
	FlagOversized      Flag = "oversized_payload"
	FlagFrequencySpike Flag = "frequency_spike"
	FlagOddHour        Flag = "unusual_hour"
)

// Sample — одно наблюдение egress-запроса.
type Sample struct {
	Domain   string
	Endpoint string // "METHOD:domain"
	Size     int
	At       time.Time
}

// maxTimestamps ограничивает окно хранимых таймстемпов на агента.
const maxTimestamps = 100

// stats — baseline одного агента. Живет до рестарта процесса (in-memory,
// best-effort память о поведении — потеря на рестарте допустима).
type stats struct {
	mu         sync.Mutex
	samples    int
	avgPayload float64
	maxPayload int
	avgPerMin  float64 // EMA частоты запросов (0.9/0.1)
	avgHour    float64 // EMA «активного часа» (сравнение по кругу)
	domains    map[string]struct{}
	endpoints  map[string]struct{}
	timestamps []time.Time
	lastAt     time.Time
}

// Tracker держит baselines всех агентов. Мьютекс на каждый agent_id —
// запросы разных агентов не конкурируют между собой (arena+index, без
// глобального лока на горячем пути).
type Tracker struct {
	cfg    infra.BaselineConfig
	logger *zap.Logger

	mu     sync.RWMutex
	agents map[string]*stats
}

func NewTracker(cfg infra.BaselineConfig, logger *zap.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		logger: logger.Named("baseline"),
		agents: make(map[string]*stats),
	}
}

// Observe сравнивает наблюдение с baseline и затем безусловно обновляет
// статистику. До MinSamples (холодный старт) — только копим, флагов нет.
// Обновление происходит на КАЖДЫЙ вызов, независимо от итогового вердикта
// запроса: успешная атака постепенно нормализует себя в baseline — это
// осознанное ограничение модели, а не баг.
func (t *Tracker) Observe(agentID string, s Sample) []Flag {
	b := t.get(agentID)

	b.mu.Lock()
	defer b.mu.Unlock()

	var flags []Flag

	// ---- Фаза 1: сравнение с ДО-обновленным состоянием ----
	if b.samples >= t.cfg.MinSamples {
		if _, ok := b.domains[s.Domain]; !ok {
			flags = append(flags, FlagNewDomain)
		}
		if _, ok := b.endpoints[s.Endpoint]; !ok {
			flags = append(flags, FlagNewEndpoint)
		}
		if b.maxPayload > 0 && float64(s.Size) > float64(b.maxPayload)*t.cfg.PayloadFactor {
			flags = append(flags, FlagOversized)
		}
		if len(b.timestamps) > 5 && b.avgPerMin > 0 {
			// Мгновенная частота: сколько запросов легло в последнюю минуту
			recent := 0
			for _, ts := range b.timestamps {
				if s.At.Sub(ts) < time.Minute {
					recent++
				}
			}
			if float64(recent) > b.avgPerMin*t.cfg.FrequencyFactor {
				flags = append(flags, FlagFrequencySpike)
			}
		}
		// Часовой профиль требует больше данных, чем остальные признаки
		if b.samples >= t.cfg.HourMinSamples {
			diff := float64(s.At.Hour()) - b.avgHour
			if diff < 0 {
				diff = -diff
			}
			// Круговая шкала: 23 и 1 — это 2 часа разницы, не 22
			if diff > 12 {
				diff = 24 - diff
			}
			if diff > float64(t.cfg.HourDeviation) {
				flags = append(flags, FlagOddHour)
			}
		}
	}

	// ---- Фаза 2: безусловное обновление статистики ----
	b.samples++
	b.avgPayload = (b.avgPayload*float64(b.samples-1) + float64(s.Size)) / float64(b.samples)
	if s.Size > b.maxPayload {
		b.maxPayload = s.Size
	}
	b.domains[s.Domain] = struct{}{}
	b.endpoints[s.Endpoint] = struct{}{}

	b.timestamps = append(b.timestamps, s.At)
	if len(b.timestamps) > maxTimestamps {
		b.timestamps = b.timestamps[len(b.timestamps)-maxTimestamps:]
	}

	if !b.lastAt.IsZero() {
		if diffMin := s.At.Sub(b.lastAt).Minutes(); diffMin > 0 {
			b.avgPerMin = b.avgPerMin*0.9 + (1/diffMin)*0.1
		}
	}
	b.lastAt = s.At

	hour := float64(s.At.Hour())
	if b.avgHour == 0 {
		b.avgHour = hour
	} else {
		b.avgHour = b.avgHour*0.9 + hour*0.1
	}

	if len(flags) > 0 {
		t.logger.Debug("behavior deviation detected",
			zap.String("agent_id", agentID),
			zap.Int("flags", len(flags)))
	}

	return flags
}

// AgentsSeen — сколько уникальных агентов мы видели с момента старта.
func (t *Tracker) AgentsSeen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.agents)
}

// Samples отдает размер выборки агента (для дебага и тестов).
func (t *Tracker) Samples(agentID string) int {
	t.mu.RLock()
	b, ok := t.agents[agentID]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

// get возвращает baseline агента, создавая его на первом запросе.
func (t *Tracker) get(agentID string) *stats {
	t.mu.RLock()
	b, ok := t.agents[agentID]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Перепроверяем под write-локом: могли проиграть гонку за создание
	if b, ok = t.agents[agentID]; ok {
		return b
	}
	b = &stats{
		domains:   make(map[string]struct{}),
		endpoints: make(map[string]struct{}),
	}
	t.agents[agentID] = b
	return b
}
