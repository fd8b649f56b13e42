package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docuflow/portal/internal/session"
)

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresUserStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresUserStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS docuflow_users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin', 'department', 'employee')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure docuflow_users schema: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByUsername(username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, ErrUserNotFound
	}

	var u User
	var role string
	const q = `SELECT id, username, password_hash, role FROM docuflow_users WHERE username = $1`
	if err := s.db.QueryRow(q, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	r, err := session.ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("decode role: %w", err)
	}
	u.Role = r
	return u, nil
}

func (s *PostgresUserStore) Put(user User) error {
	user.Username = strings.TrimSpace(user.Username)
	if user.ID == "" || user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("id, username, and password hash are required")
	}
	if !user.Role.Valid() {
		return ErrInvalidRole
	}

	const q = `
INSERT INTO docuflow_users (id, username, password_hash, role, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (username) DO UPDATE
SET id = EXCLUDED.id,
	password_hash = EXCLUDED.password_hash,
	role = EXCLUDED.role,
	updated_at = NOW()`
	if _, err := s.db.Exec(q, user.ID, user.Username, user.PasswordHash, string(user.Role)); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
