package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "shieldforce"
)

// Ключи для Sets (состояние)
const (
	RedisKeyQuarantineAgents      = RedisNamespace + ":agents:quarantine_set"
	RedisKeyLockBlockedQuarantine = RedisNamespace + ":lock:warmup_quarantine:blocked"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanQuarantine — канал трансляции переходов карантина.
	// "agent:on" шлет Egress при срабатывании, "agent:off" — только Console (админ).
	RedisChanQuarantine = RedisNamespace + ":agents:quarantine-signal"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
