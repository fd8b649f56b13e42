package kvstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &Postgres{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS client_state (
	client_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (client_id, key)
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure client_state schema: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ns, key string) (string, bool, error) {
	var value string
	const q = `SELECT value FROM client_state WHERE client_id = $1 AND key = $2`
	err := s.db.QueryRow(q, ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query client state: %w", err)
	}
	return value, true, nil
}

func (s *Postgres) Set(ns, key, value string) error {
	const q = `
INSERT INTO client_state (client_id, key, value, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (client_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.db.Exec(q, ns, key, value); err != nil {
		return fmt.Errorf("upsert client state: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM client_state WHERE client_id = $1 AND key = ANY($2)`
	if _, err := s.db.Exec(q, ns, pq.Array(keys)); err != nil {
		return fmt.Errorf("delete client state: %w", err)
	}
	return nil
}

func (s *Postgres) Keys(ns string) ([]string, error) {
	const q = `SELECT key FROM client_state WHERE client_id = $1 ORDER BY key`
	rows, err := s.db.Query(q, ns)
	if err != nil {
		return nil, fmt.Errorf("query client state keys: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan client state key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client state keys: %w", err)
	}
	return out, nil
}

func (s *Postgres) Clear(ns string) error {
	if _, err := s.db.Exec(`DELETE FROM client_state WHERE client_id = $1`, ns); err != nil {
		return fmt.Errorf("clear client state: %w", err)
	}
	return nil
}
