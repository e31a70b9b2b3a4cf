package domain

import "time"

// Action — итог решения пайплайна. Порядок строгий:
// ALLOW < WATCH < BLOCK < QUARANTINE (см. RiskConfig.Validate).
type Action string

const (
	ActionAllow      Action = "ALLOW"
	ActionWatch      Action = "WATCH" // ALLOW + усиленное логирование
	ActionBlock      Action = "BLOCK"
	ActionQuarantine Action = "QUARANTINE"
)

// IngressRequest — запрос внешнего вызывающего на инвокацию агента (front door).
type IngressRequest struct {
	AgentID      string   `json:"agent_id"`
	Purpose      string   `json:"purpose"`
	UserText     string   `json:"user_text"`
	AllowedTools []string `json:"allowed_tools"`
	DataScope    []string `json:"data_scope"`
	Budgets      Budgets  `json:"budgets"`
	RequestID    string   `json:"request_id,omitempty"`
}

// IngressResponse — ALLOW с грантом и очищенным текстом, либо BLOCK с кодом причины.
type IngressResponse struct {
	Decision   Action                 `json:"decision"`
	Reason     string                 `json:"reason,omitempty"` // Стабильный машиночитаемый код (instruction_override, ...)
	Redactions []string               `json:"redactions,omitempty"`
	Grant      string                 `json:"grant,omitempty"` // Подписанный Capability-грант (JWT)
	Result     map[string]interface{} `json:"result,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// EgressRequest — исходящий вызов агента наружу (back door).
type EgressRequest struct {
	AgentID string            `json:"agent_id"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Purpose string            `json:"purpose"`
}

// UpstreamResult — ответ реального апстрима, если вызов был разрешен.
// Ошибка апстрима — это НЕ security-событие, она просто пробрасывается агенту.
type UpstreamResult struct {
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	TTFBMs     int64             `json:"ttfb_ms"`
	ContentLen int               `json:"content_len,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EgressResponse — вердикт шлюза. BLOCK/QUARANTINE терминальны для этого вызова.
type EgressResponse struct {
	Status   Action          `json:"status"`
	Score    int             `json:"score"`
	Reasons  []string        `json:"reasons,omitempty"`
	Upstream *UpstreamResult `json:"upstream,omitempty"`
}

// Incident — неизменяемая запись о BLOCK/QUARANTINE решении.
// Append-only: основа аудита и health-скора организации.
type Incident struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id"`
	Score     int       `json:"score"`
	Action    Action    `json:"action"`
	Reasons   []string  `json:"reasons"`
	Target    string    `json:"target,omitempty"` // domain/endpoint для egress, пусто для ingress
}
