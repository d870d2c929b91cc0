package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/apierr"
)

// AlertStore persists Alert rows.
type AlertStore struct {
	*BaseStore
}

// NewAlertStore builds an AlertStore over db.
func NewAlertStore(db *sqlx.DB) *AlertStore {
	return &AlertStore{BaseStore: NewBaseStore(db)}
}

type alertRow struct {
	ID             int64          `db:"id"`
	AgentID        string         `db:"agent_id"`
	Tier           string         `db:"tier"`
	Type           string         `db:"type"`
	Severity       string         `db:"severity"`
	Description    string         `db:"description"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	AcknowledgedAt sql.NullTime   `db:"acknowledged_at"`
	AcknowledgedBy string         `db:"acknowledged_by"`
	ResolvedAt     sql.NullTime   `db:"resolved_at"`
	Notes          json.RawMessage `db:"notes"`
	Details        json.RawMessage `db:"details"`
}

func (r alertRow) toDomain() (alert.Alert, error) {
	a := alert.Alert{
		ID:             fmt.Sprintf("%d", r.ID),
		AgentID:        r.AgentID,
		Tier:           report.Tier(r.Tier),
		Type:           r.Type,
		Severity:       report.Severity(r.Severity),
		Description:    r.Description,
		Status:         alert.Status(r.Status),
		CreatedAt:      r.CreatedAt,
		AcknowledgedBy: r.AcknowledgedBy,
	}
	if r.AcknowledgedAt.Valid {
		a.AcknowledgedAt = &r.AcknowledgedAt.Time
	}
	if r.ResolvedAt.Valid {
		a.ResolvedAt = &r.ResolvedAt.Time
	}
	if len(r.Notes) > 0 {
		if err := json.Unmarshal(r.Notes, &a.Notes); err != nil {
			return alert.Alert{}, fmt.Errorf("decode alert notes: %w", err)
		}
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &a.Details); err != nil {
			return alert.Alert{}, fmt.Errorf("decode alert details: %w", err)
		}
	}
	return a, nil
}

// Insert persists a new alert and returns its assigned id.
func (s *AlertStore) Insert(ctx context.Context, a alert.Alert) (string, error) {
	notes, err := json.Marshal(a.Notes)
	if err != nil {
		return "", fmt.Errorf("encode alert notes: %w", err)
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return "", fmt.Errorf("encode alert details: %w", err)
	}

	const query = `
		INSERT INTO alerts (agent_id, tier, type, severity, description, status, created_at, notes, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	row := sqlx.QueryRowxContext(ctx, s.ExtContext(ctx), query,
		a.AgentID, string(a.Tier), a.Type, string(a.Severity), a.Description, string(a.Status), a.CreatedAt, notes, details)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

// RecentOpenByAgentType returns up to limit of the newest open alerts (new
// or acknowledged) for the same (agent, type), within the dedup window's
// lower bound — used by the alert aggregator's dedup check.
func (s *AlertStore) RecentOpenByAgentType(ctx context.Context, agentID, issueType string, since time.Time, limit int) ([]alert.Alert, error) {
	var rows []alertRow
	const query = `
		SELECT * FROM alerts
		WHERE agent_id = $1 AND type = $2 AND status IN ('new', 'acknowledged') AND created_at >= $3
		ORDER BY created_at DESC LIMIT $4
	`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, agentID, issueType, since, limit); err != nil {
		return nil, fmt.Errorf("list recent open alerts: %w", err)
	}
	out := make([]alert.Alert, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Get returns one alert by id.
func (s *AlertStore) Get(ctx context.Context, id string) (alert.Alert, error) {
	var row alertRow
	err := sqlx.GetContext(ctx, s.ExtContext(ctx), &row, `SELECT * FROM alerts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.Alert{}, apierr.NotFound("alert %q not found", id)
	}
	if err != nil {
		return alert.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return row.toDomain()
}

// Update persists the mutated lifecycle fields of an existing alert.
func (s *AlertStore) Update(ctx context.Context, a alert.Alert) error {
	notes, err := json.Marshal(a.Notes)
	if err != nil {
		return fmt.Errorf("encode alert notes: %w", err)
	}

	const query = `
		UPDATE alerts SET status = $2, acknowledged_at = $3, acknowledged_by = $4, resolved_at = $5, notes = $6
		WHERE id = $1
	`
	res, err := s.ExtContext(ctx).ExecContext(ctx, query, a.ID, string(a.Status), nullableTime(a.AcknowledgedAt), a.AcknowledgedBy, nullableTime(a.ResolvedAt), notes)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return checkRowsAffected(res, "alert", a.ID)
}

// List returns alerts matching f, newest first, paginated.
func (s *AlertStore) List(ctx context.Context, f alert.Filter) ([]alert.Alert, error) {
	query := `SELECT * FROM alerts WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AgentID != "" {
		query += " AND agent_id = " + arg(f.AgentID)
	}
	if f.Tier != "" {
		query += " AND tier = " + arg(string(f.Tier))
	}
	if f.Status != "" {
		query += " AND status = " + arg(string(f.Status))
	}
	if f.Severity != "" {
		query += " AND severity = " + arg(string(f.Severity))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	var rows []alertRow
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	out := make([]alert.Alert, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Summarize computes the alert summary since cutoff.
func (s *AlertStore) Summarize(ctx context.Context, since time.Time) (alert.Summary, error) {
	sum := alert.Summary{BySeverity: map[string]int{}, ByStatus: map[string]int{}, ByAgent: map[string]int{}}

	type row struct {
		Severity string `db:"severity"`
		Status   string `db:"status"`
		AgentID  string `db:"agent_id"`
		Count    int    `db:"count"`
	}
	var rows []row
	const query = `
		SELECT severity, status, agent_id, COUNT(*) AS count
		FROM alerts WHERE created_at >= $1
		GROUP BY severity, status, agent_id
	`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, since); err != nil {
		return sum, fmt.Errorf("summarize alerts: %w", err)
	}
	for _, r := range rows {
		sum.BySeverity[r.Severity] += r.Count
		sum.ByStatus[r.Status] += r.Count
		sum.ByAgent[r.AgentID] += r.Count
	}
	return sum, nil
}
