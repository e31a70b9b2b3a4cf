package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xela07ax/shieldforce/internal/audit"
	"github.com/xela07ax/shieldforce/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string) *AuditRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WriteBatch — пакетная вставка решений (горячий поток от AgentFS).
func (r *AuditRepo) WriteBatch(ctx context.Context, records []audit.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_decisions
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(records)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, rec := range records {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		reasons, _ := json.Marshal(rec.Reasons)
		redactions, _ := json.Marshal(rec.Redactions)

		vals = append(vals,
			rec.ID, rec.TraceID, rec.AgentID, rec.Direction,
			string(rec.Action), rec.Reason, rec.Score, reasons,
			rec.Target, redactions, rec.DurationMs, rec.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO audit_decisions (id, trace_id, agent_id, direction, action, reason, score, reasons, target, redactions, duration_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// InsertIncident пишет инцидент синхронно: они редкие, но терять их нельзя.
func (r *AuditRepo) InsertIncident(ctx context.Context, inc domain.Incident) error {
	reasons, _ := json.Marshal(inc.Reasons)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incidents (id, agent_id, score, action, reasons, target, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inc.ID, inc.AgentID, inc.Score, string(inc.Action), reasons, inc.Target, inc.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// ListIncidents отдает последние инциденты (новые первыми).
func (r *AuditRepo) ListIncidents(ctx context.Context, limit int) ([]domain.Incident, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, agent_id, score, action, reasons, target, timestamp
		 FROM incidents ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []domain.Incident
	for rows.Next() {
		var inc domain.Incident
		var action string
		var reasons []byte
		if err := rows.Scan(&inc.ID, &inc.AgentID, &inc.Score, &action, &reasons, &inc.Target, &inc.Timestamp); err != nil {
			return nil, err
		}
		inc.Action = domain.Action(action)
		_ = json.Unmarshal(reasons, &inc.Reasons)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// CountIncidentsSince — сколько инцидентов случилось после отметки времени.
func (r *AuditRepo) CountIncidentsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE timestamp >= $1`, since).Scan(&count)
	return count, err
}

// HealthPenaltySince считает суммарный штраф к health-скору:
// каждый инцидент со score > 40 отнимает (score - 40) * 0.2.
func (r *AuditRepo) HealthPenaltySince(ctx context.Context, since time.Time) (float64, error) {
	var penalty sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM((score - 40) * 0.2), 0)
		 FROM incidents WHERE timestamp >= $1 AND score > 40`, since).Scan(&penalty)
	return penalty.Float64, err
}

// CountDistinctAgents — сколько уникальных агентов проходило через шлюзы.
func (r *AuditRepo) CountDistinctAgents(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT agent_id) FROM audit_decisions`).Scan(&count)
	return count, err
}
