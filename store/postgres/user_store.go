package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/wayfind/Cortex/domain/user"
	"github.com/wayfind/Cortex/platform/apierr"
)

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	PasswordHash string    `db:"password_hash"`
}

func (r userRow) toDomain() user.User {
	return user.User{ID: r.ID, Username: r.Username, Role: r.Role, CreatedAt: r.CreatedAt}
}

// UserStore persists administrative accounts.
type UserStore struct {
	*BaseStore
}

// NewUserStore builds a UserStore over db.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{BaseStore: NewBaseStore(db)}
}

// Create registers a new user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, username, password, role string, now time.Time) (user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.User{ID: uuid.NewString(), Username: username, Role: role, CreatedAt: now}
	const query = `INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.ExtContext(ctx).ExecContext(ctx, query, u.ID, u.Username, string(hash), u.Role, u.CreatedAt); err != nil {
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// List returns every administrative account, ordered by username.
func (s *UserStore) List(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	const query = `SELECT id, username, role, created_at FROM users ORDER BY username`
	if err := sqlx.SelectContext(ctx, s.ExtContext(ctx), &rows, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Delete removes an administrative account by id.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.ExtContext(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return checkRowsAffected(res, "user", id)
}

// Authenticate verifies a username/password pair and returns the user on
// success.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, s.ExtContext(ctx), &row, `SELECT * FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, apierr.Unauthorized("invalid username or password")
	}
	if err != nil {
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return user.User{}, apierr.Unauthorized("invalid username or password")
	}
	return row.toDomain(), nil
}
