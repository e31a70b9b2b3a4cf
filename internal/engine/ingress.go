package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/shieldforce/internal/audit"
	"github.com/xela07ax/shieldforce/internal/capability"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/firewall"
	"github.com/xela07ax/shieldforce/internal/infra"
	"github.com/xela07ax/shieldforce/internal/redact"
	"go.uber.org/zap"
)

// IngressCore — front door: аутентификация вызывающего, RBAC, Pattern
// Matcher, маскирование секретов, выпуск гранта и форвард очищенного
// текста агенту. BLOCK здесь — это security-вердикт (200-уровневый
// контракт с кодом причины), а отказ в аутентификации — 401/403.
type IngressCore struct {
	cfg       infra.AuthConfig
	firewall  *firewall.Firewall
	issuer    *capability.IssuerService
	agent     AgentInvoker
	auditor   *audit.AgentFS
	incidents IncidentStore
	metrics   *Metrics
	logger    *zap.Logger
}

func NewIngressCore(
	cfg infra.AuthConfig,
	fw *firewall.Firewall,
	issuer *capability.IssuerService,
	agent AgentInvoker,
	auditor *audit.AgentFS,
	incidents IncidentStore,
	metrics *Metrics,
	logger *zap.Logger,
) *IngressCore {
	return &IngressCore{
		cfg:       cfg,
		firewall:  fw,
		issuer:    issuer,
		agent:     agent,
		auditor:   auditor,
		incidents: incidents,
		metrics:   metrics,
		logger:    logger.Named("ingress"),
	}
}

// authorize проверяет API-ключ и право вызывать данного агента.
// Сырой ключ в логи не попадает — только его sha256.
func (c *IngressCore) authorize(apiKey, agentID string) (string, bool) {
	agents, ok := c.cfg.CallerKeys[apiKey]
	if !ok {
		return "invalid_api_key", false
	}
	for _, a := range agents {
		if a == "*" || a == agentID {
			return "", true
		}
	}
	return "caller_not_authorized", false
}

func keyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

func (c *IngressCore) HandleHTTPRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		http.Error(w, "X-API-Key header is required", http.StatusUnauthorized)
		return
	}

	var req domain.IngressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agent_id is required", http.StatusBadRequest)
		return
	}
	if req.UserText == "" {
		http.Error(w, "user_text is required", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	if reason, ok := c.authorize(apiKey, req.AgentID); !ok {
		c.logger.Warn("caller rejected",
			zap.String("key_sha256", keyFingerprint(apiKey)),
			zap.String("agent_id", req.AgentID),
			zap.String("reason", reason),
		)
		status := http.StatusUnauthorized
		if reason == "caller_not_authorized" {
			status = http.StatusForbidden
		}
		http.Error(w, reason, status)
		return
	}

	resp := c.process(r, &req, start)

	w.Header().Set("Content-Type", "application/json")
	if resp.Decision == domain.ActionBlock {
		w.WriteHeader(http.StatusForbidden)
	}
	json.NewEncoder(w).Encode(resp)
}

func (c *IngressCore) process(r *http.Request, req *domain.IngressRequest, start time.Time) *domain.IngressResponse {
	ctx := r.Context()
	traceID := extractTraceID(ctx)

	record := audit.DecisionRecord{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		AgentID:   req.AgentID,
		Direction: audit.DirectionIngress,
		Timestamp: start,
	}

	// 1. Pattern Matcher: первое совпадение решает
	if v := c.firewall.Check(req.UserText); v.Matched {
		record.Action = domain.ActionBlock
		record.Reason = v.Reason
		record.DurationMs = time.Since(start).Milliseconds()
		c.auditor.Log(record)
		c.observe(audit.DirectionIngress, domain.ActionBlock, start)

		if err := c.incidents.InsertIncident(ctx, domain.Incident{
			ID:        uuid.New().String(),
			Timestamp: time.Now(),
			AgentID:   req.AgentID,
			Action:    domain.ActionBlock,
			Reasons:   []string{v.Reason},
		}); err != nil {
			c.logger.Error("failed to persist incident", zap.String("agent_id", req.AgentID), zap.Error(err))
		}

		return &domain.IngressResponse{
			Decision:  domain.ActionBlock,
			Reason:    v.Reason,
			RequestID: req.RequestID,
		}
	}

	// 2. Маскирование секретов: дальше по пайплайну идет только чистый текст
	sanitized, matches := redact.Scan(req.UserText)
	redactions := redact.Kinds(matches)

	// 3. Выпуск Capability-гранта под ровно те права, что запросил вызывающий
	grant, err := c.issuer.Issue(req.AgentID, req.AllowedTools, req.DataScope, req.Budgets)
	if err != nil {
		c.logger.Error("grant issue failed", zap.String("agent_id", req.AgentID), zap.Error(err))
		c.metrics.ErrorTotal.WithLabelValues("grant_issue").Inc()
		return &domain.IngressResponse{
			Decision:  domain.ActionBlock,
			Reason:    "grant_unavailable",
			RequestID: req.RequestID,
		}
	}

	record.Action = domain.ActionAllow
	record.Redactions = redactions

	// 4. Форвард агенту. Его отказ — инфраструктурная ошибка, не вердикт.
	var result map[string]interface{}
	if c.agent != nil {
		result, err = c.agent.Invoke(ctx, grant, map[string]interface{}{
			"agent_id":   req.AgentID,
			"purpose":    req.Purpose,
			"user_text":  sanitized,
			"request_id": req.RequestID,
		})
		if err != nil {
			c.logger.Error("agent invocation failed", zap.String("agent_id", req.AgentID), zap.Error(err))
			c.metrics.ErrorTotal.WithLabelValues("agent_invoke").Inc()
			result = map[string]interface{}{"error": "agent unavailable"}
		}
	}

	record.DurationMs = time.Since(start).Milliseconds()
	c.auditor.Log(record)
	c.observe(audit.DirectionIngress, domain.ActionAllow, start)

	return &domain.IngressResponse{
		Decision:   domain.ActionAllow,
		Redactions: redactions,
		Grant:      grant,
		Result:     result,
		RequestID:  req.RequestID,
	}
}

func (c *IngressCore) observe(direction string, action domain.Action, start time.Time) {
	c.metrics.DecisionsTotal.WithLabelValues(direction, string(action)).Inc()
	c.metrics.RequestDuration.WithLabelValues(direction, string(action)).Observe(time.Since(start).Seconds())
}
