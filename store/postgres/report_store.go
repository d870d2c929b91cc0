package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wayfind/Cortex/domain/report"
)

// ReportStore persists Report rows.
type ReportStore struct {
	*BaseStore
}

// NewReportStore builds a ReportStore over db.
func NewReportStore(db *sqlx.DB) *ReportStore {
	return &ReportStore{BaseStore: NewBaseStore(db)}
}

type reportRow struct {
	ID          int64           `db:"id"`
	AgentID     string          `db:"agent_id"`
	Status      string          `db:"status"`
	Metrics     json.RawMessage `db:"metrics"`
	Issues      json.RawMessage `db:"issues"`
	Actions     json.RawMessage `db:"actions_taken"`
	Metadata    json.RawMessage `db:"metadata"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Insert persists rep within the transaction active on ctx (the ingest
// pipeline always calls this inside BaseStore.WithTx).
func (s *ReportStore) Insert(ctx context.Context, rep report.Report) (int64, error) {
	metrics, err := json.Marshal(rep.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encode metrics: %w", err)
	}
	issues, err := json.Marshal(rep.Issues)
	if err != nil {
		return 0, fmt.Errorf("encode issues: %w", err)
	}
	actions, err := json.Marshal(rep.Actions)
	if err != nil {
		return 0, fmt.Errorf("encode actions: %w", err)
	}
	metadata, err := json.Marshal(rep.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	const query = `
		INSERT INTO reports (agent_id, status, metrics, issues, actions_taken, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	row := sqlx.QueryRowxContext(ctx, s.ExtContext(ctx), query, rep.AgentID, string(rep.Status), metrics, issues, actions, metadata, rep.Timestamp)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// Recent returns up to limit of the most recent reports for an agent.
func (s *ReportStore) Recent(ctx context.Context, agentID string, limit int) ([]report.Report, error) {
	var rows []reportRow
	const query = `SELECT id, agent_id, status, metrics, issues, actions_taken, metadata, created_at FROM reports WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, agentID, limit); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]report.Report, 0, len(rows))
	for _, r := range rows {
		rep, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r reportRow) toDomain() (report.Report, error) {
	rep := report.Report{
		ID:        fmt.Sprintf("%d", r.ID),
		AgentID:   r.AgentID,
		Status:    report.Status(r.Status),
		Timestamp: r.CreatedAt,
	}
	if err := json.Unmarshal(r.Metrics, &rep.Metrics); err != nil {
		return report.Report{}, fmt.Errorf("decode metrics: %w", err)
	}
	if len(r.Issues) > 0 {
		if err := json.Unmarshal(r.Issues, &rep.Issues); err != nil {
			return report.Report{}, fmt.Errorf("decode issues: %w", err)
		}
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &rep.Actions); err != nil {
			return report.Report{}, fmt.Errorf("decode actions: %w", err)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rep.Metadata); err != nil {
			return report.Report{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return rep, nil
}
