package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/wayfind/Cortex/platform/apierr"
)

func newMockUserStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestUserStoreCreateInsertsHashedPassword(t *testing.T) {
	s, mock := newMockUserStore(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.Create(context.Background(), "alice", "hunter2", "admin", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "alice" || u.Role != "admin" || u.ID == "" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestUserStoreListOrdersByUsername(t *testing.T) {
	s, mock := newMockUserStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "role", "created_at"}).
		AddRow("1", "alice", "admin", now).
		AddRow("2", "bob", "operator", now)
	mock.ExpectQuery(`SELECT id, username, role, created_at FROM users ORDER BY username`).WillReturnRows(rows)

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 users, got %d", len(list))
	}
}

func TestUserStoreDeleteNotFound(t *testing.T) {
	s, mock := newMockUserStore(t)
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), "user-1")
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected a NotFoundError, got %v", err)
	}
}

func TestUserStoreAuthenticateRejectsUnknownUsername(t *testing.T) {
	s, mock := newMockUserStore(t)
	mock.ExpectQuery(`SELECT \* FROM users WHERE username = \$1`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.Authenticate(context.Background(), "ghost", "whatever")
	var unauth *apierr.UnauthorizedError
	if !errors.As(err, &unauth) {
		t.Fatalf("expected an UnauthorizedError, got %v", err)
	}
}

func TestUserStoreAuthenticateRejectsWrongPassword(t *testing.T) {
	s, mock := newMockUserStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	rows := sqlmock.NewRows([]string{"id", "username", "role", "created_at", "password_hash"}).
		AddRow("1", "alice", "admin", time.Now(), string(hash))
	mock.ExpectQuery(`SELECT \* FROM users WHERE username = \$1`).WithArgs("alice").WillReturnRows(rows)

	_, err = s.Authenticate(context.Background(), "alice", "wrong-password")
	var unauth *apierr.UnauthorizedError
	if !errors.As(err, &unauth) {
		t.Fatalf("expected an UnauthorizedError, got %v", err)
	}
}

func TestUserStoreAuthenticateSucceeds(t *testing.T) {
	s, mock := newMockUserStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	rows := sqlmock.NewRows([]string{"id", "username", "role", "created_at", "password_hash"}).
		AddRow("1", "alice", "admin", time.Now(), string(hash))
	mock.ExpectQuery(`SELECT \* FROM users WHERE username = \$1`).WithArgs("alice").WillReturnRows(rows)

	u, err := s.Authenticate(context.Background(), "alice", "correct-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("unexpected user: %+v", u)
	}
}
