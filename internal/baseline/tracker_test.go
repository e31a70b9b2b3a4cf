package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/shieldforce/internal/infra"
	"go.uber.org/zap"
)

func testConfig() infra.BaselineConfig {
	return infra.BaselineConfig{
		MinSamples:      10,
		HourMinSamples:  15,
		FrequencyFactor: 5.0,
		PayloadFactor:   3.0,
		HourDeviation:   3,
	}
}

// warmup прогоняет n однотипных наблюдений с шагом в минуту.
func warmup(t *Tracker, agentID string, n int, base time.Time) time.Time {
	at := base
	for i := 0; i < n; i++ {
		t.Observe(agentID, Sample{
			Domain:   "api.crm.example",
			Endpoint: "GET:api.crm.example",
			Size:     1000,
			At:       at,
		})
		at = at.Add(time.Minute)
	}
	return at
}

func TestObserveColdStart(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// До MinSamples флаги не выдаются даже на очевидно новых доменах
	for i := 0; i < 10; i++ {
		flags := tr.Observe("agent-1", Sample{
			Domain:   "api.crm.example",
			Endpoint: "GET:api.crm.example",
			Size:     1000,
			At:       base.Add(time.Duration(i) * time.Minute),
		})
		assert.Empty(t, flags, "observation %d", i)
	}
	assert.Equal(t, 10, tr.Samples("agent-1"))
}

func TestObserveKnownDomainNoFlags(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := warmup(tr, "agent-1", 10, base)

	flags := tr.Observe("agent-1", Sample{
		Domain:   "api.crm.example",
		Endpoint: "GET:api.crm.example",
		Size:     1100,
		At:       at,
	})
	assert.Empty(t, flags)
}

func TestObserveNewDomain(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := warmup(tr, "agent-1", 10, base)

	flags := tr.Observe("agent-1", Sample{
		Domain:   "transfer.sh",
		Endpoint: "POST:transfer.sh",
		Size:     1000,
		At:       at,
	})
	assert.Contains(t, flags, FlagNewDomain)
	assert.Contains(t, flags, FlagNewEndpoint)
}

// Сравнение идет строго ДО обновления: второй визит на тот же домен
// флага уже не дает.
func TestObserveCompareThenUpdate(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := warmup(tr, "agent-1", 10, base)

	first := tr.Observe("agent-1", Sample{
		Domain: "transfer.sh", Endpoint: "POST:transfer.sh", Size: 1000, At: at,
	})
	assert.Contains(t, first, FlagNewDomain)

	second := tr.Observe("agent-1", Sample{
		Domain: "transfer.sh", Endpoint: "POST:transfer.sh", Size: 1000, At: at.Add(time.Minute),
	})
	assert.NotContains(t, second, FlagNewDomain)
	assert.NotContains(t, second, FlagNewEndpoint)
}

func TestObserveOversizedPayload(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := warmup(tr, "agent-1", 10, base) // max payload в baseline = 1000

	// Ровно 3x максимума — еще не аномалия (порог строгий)
	flags := tr.Observe("agent-1", Sample{
		Domain:   "api.crm.example",
		Endpoint: "GET:api.crm.example",
		Size:     3000,
		At:       at,
	})
	assert.NotContains(t, flags, FlagOversized)

	// Максимум после предыдущего наблюдения вырос до 3000
	flags = tr.Observe("agent-1", Sample{
		Domain:   "api.crm.example",
		Endpoint: "GET:api.crm.example",
		Size:     9001, // строго больше 3x нового максимума
		At:       at.Add(time.Minute),
	})
	assert.Contains(t, flags, FlagOversized)
}

func TestObserveFrequencySpike(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := warmup(tr, "agent-1", 10, base)

	// Всплеск: пачка запросов в одну и ту же секунду
	burst := at.Add(30 * time.Second)
	var seen []Flag
	for i := 0; i < 6; i++ {
		flags := tr.Observe("agent-1", Sample{
			Domain:   "api.crm.example",
			Endpoint: "GET:api.crm.example",
			Size:     1000,
			At:       burst,
		})
		seen = append(seen, flags...)
	}
	assert.Contains(t, seen, FlagFrequencySpike)
}

func TestObserveUnusualHour(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())

	// Профиль ночного агента: 15 наблюдений в час 23
	base := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	warmup(tr, "agent-1", 15, base)

	// 01:00 следующего дня — по кругу это всего 2 часа, не отклонение
	flags := tr.Observe("agent-1", Sample{
		Domain: "api.crm.example", Endpoint: "GET:api.crm.example", Size: 1000,
		At: time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC),
	})
	assert.NotContains(t, flags, FlagOddHour)

	// 14:00 — отклонение в 9 часов по кругу
	flags = tr.Observe("agent-1", Sample{
		Domain: "api.crm.example", Endpoint: "GET:api.crm.example", Size: 1000,
		At: time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, flags, FlagOddHour)
}

func TestTrackerIsolatesAgents(t *testing.T) {
	tr := NewTracker(testConfig(), zap.NewNop())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	warmup(tr, "agent-1", 10, base)

	// Для свежего агента тот же домен — холодный старт, без флагов
	flags := tr.Observe("agent-2", Sample{
		Domain: "transfer.sh", Endpoint: "POST:transfer.sh", Size: 1000, At: base,
	})
	assert.Empty(t, flags)
	assert.Equal(t, 2, tr.AgentsSeen())
}
