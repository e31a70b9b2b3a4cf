package audit

import (
	"time"

	"github.com/xela07ax/shieldforce/internal/domain"
)

// DecisionRecord — одна структурированная запись решения пайплайна.
// Ровно одна на каждый ingress/egress вызов, в любом исходе.
// Тексты и тела сюда попадают только после редакции секретов.
type DecisionRecord struct {
	ID        string        `json:"id"`       // UUID записи
	TraceID   string        `json:"trace_id"` // Сквозной ID запроса
	AgentID   string        `json:"agent_id"`
	Direction string        `json:"direction"` // "ingress" или "egress"
	Action    domain.Action `json:"action"`
	Reason    string        `json:"reason,omitempty"` // Код для BLOCK (instruction_override, ...)
	Score     int           `json:"score"`
	Reasons   []string      `json:"reasons,omitempty"`
	Target    string        `json:"target,omitempty"`     // domain/endpoint для egress
	Redactions []string     `json:"redactions,omitempty"` // Типы замаскированных секретов

	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

const (
	DirectionIngress = "ingress"
	DirectionEgress  = "egress"
)
