package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/apierr"
)

// AgentStore persists Agent rows.
type AgentStore struct {
	*BaseStore
}

// NewAgentStore builds an AgentStore over db.
func NewAgentStore(db *sqlx.DB) *AgentStore {
	return &AgentStore{BaseStore: NewBaseStore(db)}
}

type agentRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	ParentID      sql.NullString `db:"parent_id"`
	UpstreamURL   string         `db:"upstream_url"`
	APIKeyHash    string         `db:"api_key_hash"`
	Status        string         `db:"status"`
	Health        string         `db:"health"`
	LastHeartbeat sql.NullTime   `db:"last_heartbeat"`
	Metadata      []byte         `db:"metadata"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r agentRow) toDomain() (agent.Agent, error) {
	a := agent.Agent{
		ID:          r.ID,
		Name:        r.Name,
		UpstreamURL: r.UpstreamURL,
		Status:      agent.Status(r.Status),
		Health:      agent.Health(r.Health),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ParentID.Valid {
		a.ParentID = &r.ParentID.String
	}
	if r.LastHeartbeat.Valid {
		a.LastHeartbeat = &r.LastHeartbeat.Time
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
			return agent.Agent{}, fmt.Errorf("decode agent metadata: %w", err)
		}
	}
	return a, nil
}

// Upsert inserts a new agent, or (per spec.md §4.14) updates every field in
// place — including parent — if the id already exists. apiKey is hashed
// before storage; pass "" to leave an existing key unchanged.
func (s *AgentStore) Upsert(ctx context.Context, a agent.Agent, apiKey string) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode agent metadata: %w", err)
	}

	var keyHash string
	if apiKey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash api key: %w", err)
		}
		keyHash = string(hash)
	}

	const query = `
		INSERT INTO agents (id, name, parent_id, upstream_url, api_key_hash, status, health, last_heartbeat, metadata, created_at, updated_at)
		VALUES (:id, :name, :parent_id, :upstream_url, :api_key_hash, :status, :health, :last_heartbeat, :metadata, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			parent_id = EXCLUDED.parent_id,
			upstream_url = EXCLUDED.upstream_url,
			api_key_hash = CASE WHEN EXCLUDED.api_key_hash = '' THEN agents.api_key_hash ELSE EXCLUDED.api_key_hash END,
			status = EXCLUDED.status,
			health = EXCLUDED.health,
			last_heartbeat = EXCLUDED.last_heartbeat,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	args := map[string]any{
		"id":             a.ID,
		"name":           a.Name,
		"parent_id":      nullableString(a.ParentID),
		"upstream_url":   a.UpstreamURL,
		"api_key_hash":   keyHash,
		"status":         string(a.Status),
		"health":         string(a.Health),
		"last_heartbeat": nullableTime(a.LastHeartbeat),
		"metadata":       metadata,
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}

	_, err = sqlx.NamedExecContext(ctx, s.ExtContext(ctx), query, args)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// Get returns one agent by id.
func (s *AgentStore) Get(ctx context.Context, id string) (agent.Agent, error) {
	var row agentRow
	err := sqlx.GetContext(ctx, s.ExtContext(ctx), &row, `SELECT * FROM agents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.Agent{}, apierr.NotFound("agent %q not found", id)
	}
	if err != nil {
		return agent.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return row.toDomain()
}

// List returns every agent, for the cluster overview and topology service.
func (s *AgentStore) List(ctx context.Context) ([]agent.Agent, error) {
	var rows []agentRow
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, `SELECT * FROM agents ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	out := make([]agent.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Touch records a heartbeat and health update for an existing agent.
func (s *AgentStore) Touch(ctx context.Context, id string, health string, now time.Time) error {
	const query = `UPDATE agents SET status = 'online', health = $2, last_heartbeat = $3, updated_at = $3 WHERE id = $1`
	res, err := s.ExtContext(ctx).ExecContext(ctx, query, id, health, now)
	if err != nil {
		return fmt.Errorf("touch agent: %w", err)
	}
	return checkRowsAffected(res, "agent", id)
}

// MarkOffline transitions an agent's status without touching health, per
// spec.md §4.8's "missing heartbeat does not clear health" invariant.
func (s *AgentStore) MarkOffline(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE agents SET status = 'offline', updated_at = $2 WHERE id = $1`
	_, err := s.ExtContext(ctx).ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("mark agent offline: %w", err)
	}
	return nil
}

// OnlineExpired returns every online agent whose heartbeat has expired,
// for the heartbeat checker's sweep.
func (s *AgentStore) OnlineExpired(ctx context.Context, cutoff time.Time) ([]agent.Agent, error) {
	var rows []agentRow
	const query = `SELECT * FROM agents WHERE status = 'online' AND (last_heartbeat IS NULL OR last_heartbeat < $1)`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("list expired agents: %w", err)
	}
	out := make([]agent.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Delete removes an agent by id.
func (s *AgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.ExtContext(ctx).ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return checkRowsAffected(res, "agent", id)
}

// AuthenticateAPIKey resolves a plaintext API key to its owning agent id,
// satisfying middleware.AgentAuthenticator.
func (s *AgentStore) AuthenticateAPIKey(ctx context.Context, apiKey string) (string, error) {
	var rows []agentRow
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, `SELECT * FROM agents`); err != nil {
		return "", fmt.Errorf("load agents for api key check: %w", err)
	}
	for _, r := range rows {
		if bcrypt.CompareHashAndPassword([]byte(r.APIKeyHash), []byte(apiKey)) == nil {
			return r.ID, nil
		}
	}
	return "", apierr.Unauthorized("invalid api key")
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func checkRowsAffected(res interface{ RowsAffected() (int64, error) }, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apierr.NotFound("%s %q not found", kind, id)
	}
	return nil
}
