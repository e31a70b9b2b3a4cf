package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/shieldforce/internal/audit"
	"github.com/xela07ax/shieldforce/internal/baseline"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/risk"
	"go.uber.org/zap"
)

// ReasonAgentLocked — код причины для запросов агента, уже находящегося
// в карантине. Такие запросы не скорятся и не попадают в baseline.
const ReasonAgentLocked = "agent_locked"

// Отчетный score для короткого замыкания карантина.
const maxRiskScore = 100

// QuarantineRegistry — контракт реестра карантина для ядра egress.
type QuarantineRegistry interface {
	IsQuarantined(agentID string) bool
	Quarantine(ctx context.Context, agentID string)
	Count() int
}

// IncidentStore пишет неизменяемые записи о BLOCK/QUARANTINE решениях.
type IncidentStore interface {
	InsertIncident(ctx context.Context, inc domain.Incident) error
}

// EgressCore — ядро Egress Gateway: карантин -> baseline -> скоринг ->
// вердикт -> (возможно) реальный вызов. Проверка, скоринг и переход
// состояния сериализованы per-agent: два конкурентных запроса одного
// агента не могут одновременно пройти скоринг.
type EgressCore struct {
	tracker    *baseline.Tracker
	scorer     *risk.Scorer
	quarantine QuarantineRegistry
	upstream   UpstreamProvider
	auditor    *audit.AgentFS
	incidents  IncidentStore
	metrics    *Metrics
	logger     *zap.Logger
	controlLog *zap.Logger

	// Per-agent мьютексы: глобального лока на decision path нет
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewEgressCore(
	tracker *baseline.Tracker,
	scorer *risk.Scorer,
	quarantine QuarantineRegistry,
	upstream UpstreamProvider,
	auditor *audit.AgentFS,
	incidents IncidentStore,
	metrics *Metrics,
	logger *zap.Logger,
) *EgressCore {
	return &EgressCore{
		tracker:    tracker,
		scorer:     scorer,
		quarantine: quarantine,
		upstream:   upstream,
		auditor:    auditor,
		incidents:  incidents,
		metrics:    metrics,
		logger:     logger.Named("egress"),
		controlLog: logger.Named("control"),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (e *EgressCore) agentLock(agentID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[agentID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[agentID] = mu
	}
	return mu
}

// ProcessEgress принимает решение по одному исходящему вызову.
// Вердикт и переход в карантин происходят под per-agent локом;
// сетевой вызов апстрима — уже после решения, вне лока.
func (e *EgressCore) ProcessEgress(ctx context.Context, req *domain.EgressRequest) *domain.EgressResponse {
	start := time.Now()
	traceID := extractTraceID(ctx)
	target := risk.ExtractDomain(req.URL)

	record := audit.DecisionRecord{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		AgentID:   req.AgentID,
		Direction: audit.DirectionEgress,
		Target:    target,
		Timestamp: start,
	}

	mu := e.agentLock(req.AgentID)
	mu.Lock()

	// Абсолютный приоритет: агент в локауте не скорится и не обучает baseline
	if e.quarantine.IsQuarantined(req.AgentID) {
		mu.Unlock()

		record.Action = domain.ActionQuarantine
		record.Reason = ReasonAgentLocked
		record.Score = maxRiskScore
		record.DurationMs = time.Since(start).Milliseconds()
		e.auditor.Log(record)
		e.observe(audit.DirectionEgress, domain.ActionQuarantine, start)

		return &domain.EgressResponse{
			Status:  domain.ActionQuarantine,
			Score:   maxRiskScore,
			Reasons: []string{ReasonAgentLocked},
		}
	}

	// Сначала сравнение с baseline, потом его обновление (внутри Observe)
	flags := e.tracker.Observe(req.AgentID, baseline.Sample{
		Domain:   target,
		Endpoint: req.Method + ":" + target,
		Size:     len(req.Body),
		At:       start,
	})

	assessment := e.scorer.Score(ctx, risk.Input{
		AgentID: req.AgentID,
		URL:     req.URL,
		Method:  req.Method,
		Body:    req.Body,
		Purpose: req.Purpose,
		Flags:   flags,
	})

	if assessment.Action == domain.ActionQuarantine {
		e.quarantine.Quarantine(ctx, req.AgentID)
		e.controlLog.Warn("agent quarantined",
			zap.String("agent_id", req.AgentID),
			zap.String("target", target),
			zap.Int("score", assessment.Score),
			zap.Strings("reasons", assessment.Reasons),
			zap.Bool("secret_hit", assessment.SecretHit),
		)
		e.metrics.QuarantinedAgents.Set(float64(e.quarantine.Count()))
	}
	mu.Unlock()

	record.Action = assessment.Action
	record.Score = assessment.Score
	record.Reasons = assessment.Reasons
	record.DurationMs = time.Since(start).Milliseconds()

	switch assessment.Action {
	case domain.ActionBlock, domain.ActionQuarantine:
		e.auditor.Log(record)
		e.recordIncident(ctx, req.AgentID, target, assessment)
		e.observe(audit.DirectionEgress, assessment.Action, start)
		return &domain.EgressResponse{
			Status:  assessment.Action,
			Score:   assessment.Score,
			Reasons: assessment.Reasons,
		}
	case domain.ActionWatch:
		e.controlLog.Info("elevated risk, forwarding under watch",
			zap.String("agent_id", req.AgentID),
			zap.String("target", target),
			zap.Int("score", assessment.Score),
			zap.Strings("reasons", assessment.Reasons),
		)
	}

	// ALLOW/WATCH: реальный вызов. Отказ апстрима — это отказ инфраструктуры,
	// он пробрасывается агенту и не меняет security-вердикт.
	resp := &domain.EgressResponse{
		Status:  assessment.Action,
		Score:   assessment.Score,
		Reasons: assessment.Reasons,
	}

	result, err := e.upstream.Do(ctx, req)
	if err != nil {
		e.logger.Error("upstream call failed",
			zap.String("agent_id", req.AgentID),
			zap.String("target", target),
			zap.Error(err),
		)
		resp.Upstream = &domain.UpstreamResult{Error: err.Error()}
	} else {
		resp.Upstream = result
	}

	record.DurationMs = time.Since(start).Milliseconds()
	e.auditor.Log(record)
	e.observe(audit.DirectionEgress, assessment.Action, start)
	return resp
}

func (e *EgressCore) recordIncident(ctx context.Context, agentID, target string, a risk.Assessment) {
	inc := domain.Incident{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		AgentID:   agentID,
		Score:     a.Score,
		Action:    a.Action,
		Reasons:   a.Reasons,
		Target:    target,
	}
	if err := e.incidents.InsertIncident(ctx, inc); err != nil {
		e.logger.Error("failed to persist incident", zap.String("agent_id", agentID), zap.Error(err))
		e.metrics.ErrorTotal.WithLabelValues("incident_store").Inc()
	}
}

func (e *EgressCore) observe(direction string, action domain.Action, start time.Time) {
	e.metrics.DecisionsTotal.WithLabelValues(direction, string(action)).Inc()
	e.metrics.RequestDuration.WithLabelValues(direction, string(action)).Observe(time.Since(start).Seconds())
}

// HandleHTTPRequest — входная точка шлюза: POST с EgressRequest в теле.
// HTTP-статус отражает вердикт: 200 для ALLOW/WATCH, 403 для BLOCK и
// QUARANTINE, 502 если апстрим недоступен.
func (e *EgressCore) HandleHTTPRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.EgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.URL == "" {
		http.Error(w, "agent_id and url are required", http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	resp := e.ProcessEgress(r.Context(), &req)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case resp.Status == domain.ActionBlock || resp.Status == domain.ActionQuarantine:
		w.WriteHeader(http.StatusForbidden)
	case resp.Upstream != nil && resp.Upstream.Error != "":
		w.WriteHeader(http.StatusBadGateway)
	}
	json.NewEncoder(w).Encode(resp)
}
