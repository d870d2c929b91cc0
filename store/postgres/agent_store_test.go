package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/wayfind/Cortex/domain/agent"
	"github.com/wayfind/Cortex/platform/apierr"
)

func newMockAgentStore(t *testing.T) (*AgentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAgentStore(sqlx.NewDb(db, "sqlmock")), mock
}

var agentColumns = []string{
	"id", "name", "parent_id", "upstream_url", "api_key_hash",
	"status", "health", "last_heartbeat", "metadata", "created_at", "updated_at",
}

func TestAgentStoreUpsertExecutesNamedInsert(t *testing.T) {
	s, mock := newMockAgentStore(t)
	mock.ExpectExec(`INSERT INTO agents`).WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := s.Upsert(context.Background(), agent.Agent{ID: "agent-1", Status: agent.StatusOnline, CreatedAt: now, UpdatedAt: now}, "api-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAgentStoreGetReturnsNotFoundOnNoRows(t *testing.T) {
	s, mock := newMockAgentStore(t)
	mock.ExpectQuery(`SELECT \* FROM agents WHERE id = \$1`).
		WithArgs("agent-1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "agent-1")
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected a NotFoundError, got %v", err)
	}
}

func TestAgentStoreGetDecodesRow(t *testing.T) {
	s, mock := newMockAgentStore(t)
	now := time.Now()
	rows := sqlmock.NewRows(agentColumns).
		AddRow("agent-1", "agent-1", nil, "", "hash", "online", "healthy", nil, []byte("{}"), now, now)
	mock.ExpectQuery(`SELECT \* FROM agents WHERE id = \$1`).WithArgs("agent-1").WillReturnRows(rows)

	got, err := s.Get(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "agent-1" || got.Status != agent.StatusOnline {
		t.Errorf("unexpected agent: %+v", got)
	}
}

func TestAgentStoreListOrdersByID(t *testing.T) {
	s, mock := newMockAgentStore(t)
	now := time.Now()
	rows := sqlmock.NewRows(agentColumns).
		AddRow("a", "a", nil, "", "", "online", "", nil, []byte("{}"), now, now).
		AddRow("b", "b", nil, "", "", "offline", "", nil, []byte("{}"), now, now)
	mock.ExpectQuery(`SELECT \* FROM agents ORDER BY id`).WillReturnRows(rows)

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
}

func TestAgentStoreTouchNotFoundOnZeroRowsAffected(t *testing.T) {
	s, mock := newMockAgentStore(t)
	mock.ExpectExec(`UPDATE agents SET status = 'online'`).
		WithArgs("agent-1", "healthy", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Touch(context.Background(), "agent-1", "healthy", time.Now())
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected a NotFoundError on zero rows affected, got %v", err)
	}
}

func TestAgentStoreTouchSucceeds(t *testing.T) {
	s, mock := newMockAgentStore(t)
	mock.ExpectExec(`UPDATE agents SET status = 'online'`).
		WithArgs("agent-1", "healthy", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Touch(context.Background(), "agent-1", "healthy", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAgentStoreDeleteNotFound(t *testing.T) {
	s, mock := newMockAgentStore(t)
	mock.ExpectExec(`DELETE FROM agents WHERE id = \$1`).WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), "agent-1")
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected a NotFoundError, got %v", err)
	}
}

func TestAgentStoreAuthenticateAPIKeyRejectsUnknownKey(t *testing.T) {
	s, mock := newMockAgentStore(t)
	rows := sqlmock.NewRows(agentColumns)
	mock.ExpectQuery(`SELECT \* FROM agents`).WillReturnRows(rows)

	_, err := s.AuthenticateAPIKey(context.Background(), "unknown-key")
	if err == nil {
		t.Fatal("expected an error for a key matching no agent")
	}
}
