package domain

import "time"

type AgentStatus string

const (
	StatusActive     AgentStatus = "active"     // Полный доступ
	StatusQuarantine AgentStatus = "quarantine" // Абсолютный lockout, снимается только админом
)

// Agent — логический экземпляр агента. ID — непрозрачный ключ для всего
// per-agent состояния (baseline, карантин); сам по себе не истекает.
type Agent struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`   // Человекочитаемое имя (например, "Support-Bot")
	Status AgentStatus `json:"status"` // Текущее состояние в Control Plane

	// Метаданные для Observability
	LastActivity time.Time `json:"last_activity"` // Последний обработанный запрос
	CreatedAt    time.Time `json:"created_at"`
}
