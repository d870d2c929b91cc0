package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wayfind/Cortex/domain/decision"
	"github.com/wayfind/Cortex/platform/apierr"
)

// DecisionStore persists Decision rows. agent_id is intentionally
// unconstrained (no FK to agents) — see DESIGN.md Open Question 1.
type DecisionStore struct {
	*BaseStore
}

// NewDecisionStore builds a DecisionStore over db.
func NewDecisionStore(db *sqlx.DB) *DecisionStore {
	return &DecisionStore{BaseStore: NewBaseStore(db)}
}

type decisionRow struct {
	ID               int64          `db:"id"`
	AgentID          string         `db:"agent_id"`
	IssueType        string         `db:"issue_type"`
	IssueDescription string         `db:"issue_description"`
	ProposedAction   string         `db:"proposed_action"`
	LLMAnalysis      string         `db:"llm_analysis"`
	Status           string         `db:"status"`
	Reason           string         `db:"reason"`
	CreatedAt        time.Time      `db:"created_at"`
	ExecutedAt       sql.NullTime   `db:"executed_at"`
	ExecutionResult  string         `db:"execution_result"`
}

func (r decisionRow) toDomain() decision.Decision {
	d := decision.Decision{
		ID:               fmt.Sprintf("%d", r.ID),
		AgentID:          r.AgentID,
		IssueType:        r.IssueType,
		IssueDescription: r.IssueDescription,
		ProposedAction:   r.ProposedAction,
		LLMAnalysis:      r.LLMAnalysis,
		Status:           decision.Status(r.Status),
		Reason:           r.Reason,
		CreatedAt:        r.CreatedAt,
		ExecutionResult:  r.ExecutionResult,
	}
	if r.ExecutedAt.Valid {
		d.ExecutedAt = &r.ExecutedAt.Time
	}
	return d
}

// Insert persists a new decision and returns its assigned id.
func (s *DecisionStore) Insert(ctx context.Context, d decision.Decision) (string, error) {
	const query = `
		INSERT INTO decisions (agent_id, issue_type, issue_description, proposed_action, llm_analysis, status, reason, created_at, executed_at, execution_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	row := sqlx.QueryRowxContext(ctx, s.ExtContext(ctx), query,
		d.AgentID, d.IssueType, d.IssueDescription, d.ProposedAction, d.LLMAnalysis,
		string(d.Status), d.Reason, d.CreatedAt, nullableTime(d.ExecutedAt), d.ExecutionResult)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("insert decision: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

// Recent returns up to limit of the most recent decisions for an agent.
func (s *DecisionStore) Recent(ctx context.Context, agentID string, limit int) ([]decision.Decision, error) {
	var rows []decisionRow
	const query = `SELECT * FROM decisions WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, agentID, limit); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	out := make([]decision.Decision, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Get returns one decision by id.
func (s *DecisionStore) Get(ctx context.Context, id string) (decision.Decision, error) {
	var row decisionRow
	err := sqlx.GetContext(ctx, s.ExtContext(ctx), &row, `SELECT * FROM decisions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return decision.Decision{}, apierr.NotFound("decision %q not found", id)
	}
	if err != nil {
		return decision.Decision{}, fmt.Errorf("get decision: %w", err)
	}
	return row.toDomain(), nil
}

// Update persists a decision's execution outcome (MarkExecuted).
func (s *DecisionStore) Update(ctx context.Context, d decision.Decision) error {
	const query = `UPDATE decisions SET executed_at = $2, execution_result = $3 WHERE id = $1`
	res, err := s.ExtContext(ctx).ExecContext(ctx, query, d.ID, nullableTime(d.ExecutedAt), d.ExecutionResult)
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	return checkRowsAffected(res, "decision", d.ID)
}

// List returns decisions matching f, newest first, paginated.
func (s *DecisionStore) List(ctx context.Context, f decision.Filter) ([]decision.Decision, error) {
	query := `SELECT * FROM decisions WHERE created_at >= $1`
	args := []any{f.Since}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AgentID != "" {
		query += " AND agent_id = " + arg(f.AgentID)
	}
	if f.Status != "" {
		query += " AND status = " + arg(string(f.Status))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	var rows []decisionRow
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	out := make([]decision.Decision, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
