package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wayfind/Cortex/domain/intent"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/apierr"
)

// IntentStore is the append-only audit log store (spec.md §4.16). It lives
// in its own table — separate from the operational entities — matching
// spec.md §3's "IntentRecord lives in a separate audit store."
type IntentStore struct {
	*BaseStore
}

// NewIntentStore builds an IntentStore over db.
func NewIntentStore(db *sqlx.DB) *IntentStore {
	return &IntentStore{BaseStore: NewBaseStore(db)}
}

type intentRow struct {
	ID          string         `db:"id"`
	AgentID     string         `db:"agent_id"`
	Kind        string         `db:"kind"`
	Tier        sql.NullString `db:"tier"`
	Category    string         `db:"category"`
	Description string         `db:"description"`
	Metadata    json.RawMessage `db:"metadata"`
	Status      string         `db:"status"`
	Timestamp   time.Time      `db:"timestamp"`
}

// Record appends one intent entry. Best-effort: callers should log and
// swallow any returned error rather than let it block the main action.
func (s *IntentStore) Record(ctx context.Context, rec intent.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode intent metadata: %w", err)
	}

	var tier sql.NullString
	if rec.Tier != nil {
		tier = sql.NullString{String: string(*rec.Tier), Valid: true}
	}

	const query = `
		INSERT INTO intent_records (id, agent_id, kind, tier, category, description, metadata, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.ExtContext(ctx).ExecContext(ctx, query, rec.ID, rec.AgentID, string(rec.Kind), tier, rec.Category, rec.Description, metadata, rec.Status, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("record intent: %w", err)
	}
	return nil
}

// Get returns one intent record by id.
func (s *IntentStore) Get(ctx context.Context, id string) (intent.Record, error) {
	var row intentRow
	err := sqlx.GetContext(ctx, s.ExtContext(ctx), &row, `SELECT * FROM intent_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return intent.Record{}, apierr.NotFound("intent record %q not found", id)
	}
	if err != nil {
		return intent.Record{}, fmt.Errorf("get intent record: %w", err)
	}
	return row.toDomain()
}

// Query returns intent records matching filter, newest first.
func (s *IntentStore) Query(ctx context.Context, f intent.Filter) ([]intent.Record, error) {
	query := `SELECT * FROM intent_records WHERE timestamp >= $1`
	args := []any{f.Since}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AgentID != "" {
		query += " AND agent_id = " + arg(f.AgentID)
	}
	if f.Kind != "" {
		query += " AND kind = " + arg(f.Kind)
	}
	if f.Tier != "" {
		query += " AND tier = " + arg(f.Tier)
	}
	if f.Category != "" {
		query += " AND category = " + arg(f.Category)
	}
	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	var rows []intentRow
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query intent records: %w", err)
	}

	out := make([]intent.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r intentRow) toDomain() (intent.Record, error) {
	rec := intent.Record{
		ID:          r.ID,
		AgentID:     r.AgentID,
		Kind:        intent.Kind(r.Kind),
		Category:    r.Category,
		Description: r.Description,
		Status:      r.Status,
		Timestamp:   r.Timestamp,
	}
	if r.Tier.Valid {
		tier := report.Tier(r.Tier.String)
		rec.Tier = &tier
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return intent.Record{}, fmt.Errorf("decode intent metadata: %w", err)
		}
	}
	return rec, nil
}
