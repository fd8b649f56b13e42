package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"docuflow/portal/internal/session"
)

type FileUserStore struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// fileUser is the on-disk shape; unlike User it keeps the password hash.
type fileUser struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"password_hash"`
	Role         session.Role `json:"role"`
}

func NewFileUserStore(path string) (*FileUserStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("user state file path is required")
	}

	s := &FileUserStore{
		path:  path,
		users: make(map[string]User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileUserStore) GetByUsername(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *FileUserStore) Put(user User) error {
	if !user.Role.Valid() {
		return ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.users[user.Username]
	s.users[user.Username] = user
	if err := s.persistLocked(); err != nil {
		if had {
			s.users[user.Username] = prev
		} else {
			delete(s.users, user.Username)
		}
		return err
	}
	return nil
}

func (s *FileUserStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read user store file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded []fileUser
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode user store file: %w", err)
	}
	for _, u := range decoded {
		if strings.TrimSpace(u.Username) == "" {
			continue
		}
		role, err := session.ParseRole(string(u.Role))
		if err != nil {
			return fmt.Errorf("user %q: %w", u.Username, err)
		}
		s.users[u.Username] = User{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash, Role: role}
	}
	return nil
}

func (s *FileUserStore) persistLocked() error {
	out := make([]fileUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, fileUser{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash, Role: u.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir user store dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write user store file: %w", err)
	}
	return nil
}
