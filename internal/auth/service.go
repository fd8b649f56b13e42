package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"docuflow/portal/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidRole        = errors.New("invalid role")
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
)

type Service struct {
	users        UserStore
	pepper       []byte
	ttl          time.Duration
	refreshTTL   time.Duration
	cost         int
	nowFunc      func() time.Time
	stateFile    string
	sessionStore SessionStore

	sessMu   sync.RWMutex
	sessions map[string]Session
}

type ServiceConfig struct {
	PasswordPepper   string
	SessionTTL       time.Duration
	RefreshTTL       time.Duration
	BcryptCost       int
	SessionStateFile string
	SessionStore     SessionStore
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.PasswordPepper == "" {
		return nil, fmt.Errorf("password pepper is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = cfg.SessionTTL
	}
	if cfg.RefreshTTL < cfg.SessionTTL {
		return nil, fmt.Errorf("refresh TTL must be >= session TTL")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &Service{
		users:        userStore,
		pepper:       []byte(cfg.PasswordPepper),
		ttl:          cfg.SessionTTL,
		refreshTTL:   cfg.RefreshTTL,
		cost:         cfg.BcryptCost,
		nowFunc:      time.Now,
		stateFile:    cfg.SessionStateFile,
		sessionStore: cfg.SessionStore,
		sessions:     make(map[string]Session),
	}, nil
}

// peppered keys the password with the server secret before bcrypt sees it.
// The hex digest also keeps long passwords under bcrypt's 72 byte limit.
func (s *Service) peppered(password string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(password))
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}

func (s *Service) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(s.peppered(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), s.peppered(password)) == nil
}

// AddUser hashes the password and stores the user, replacing any user with the
// same name.
func (s *Service) AddUser(username, password string, role session.Role) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if !role.Valid() {
		return User{}, ErrInvalidRole
	}
	if password == "" {
		return User{}, ErrWeakPassword
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Username: username, PasswordHash: hash, Role: role}
	if existing, err := s.users.GetByUsername(username); err == nil {
		u.ID = existing.ID
	}
	if err := s.users.Put(u); err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}

func (s *Service) Login(username, password string) (Session, error) {
	u, err := s.users.GetByUsername(username)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	if !s.VerifyPassword(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	now := s.nowFunc()
	sess, err := s.issue(Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: now,
	}, now)
	if err != nil {
		return Session{}, err
	}

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.sessions[sess.AccessToken] = sess
	if err := s.persistSessionsLocked(); err != nil {
		delete(s.sessions, sess.AccessToken)
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) issue(sess Session, now time.Time) (Session, error) {
	access, err := generateToken(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	refresh, err := generateToken(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	sess.AccessToken = access
	sess.RefreshToken = refresh
	sess.ExpiresAt = now.Add(s.ttl)
	sess.RefreshExpiresAt = now.Add(s.refreshTTL)
	return sess, nil
}

// ValidateToken accepts an unexpired access token. A session whose refresh
// window has also closed is dropped.
func (s *Service) ValidateToken(token string) (Session, error) {
	s.sessMu.RLock()
	sess, ok := s.sessions[token]
	s.sessMu.RUnlock()
	if !ok {
		return Session{}, ErrInvalidToken
	}

	now := s.nowFunc()
	if now.After(sess.RefreshExpiresAt) {
		s.sessMu.Lock()
		delete(s.sessions, token)
		_ = s.persistSessionsLocked()
		s.sessMu.Unlock()
		return Session{}, ErrInvalidToken
	}
	if now.After(sess.ExpiresAt) {
		return Session{}, ErrInvalidToken
	}
	return sess, nil
}

// Refresh rotates both tokens of the session owning refreshToken. The old pair
// stops working.
func (s *Service) Refresh(refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, ErrInvalidToken
	}
	now := s.nowFunc()

	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	oldToken := ""
	var old Session
	for token, sess := range s.sessions {
		if sess.RefreshToken == refreshToken {
			oldToken, old = token, sess
			break
		}
	}
	if oldToken == "" {
		return Session{}, ErrInvalidToken
	}
	if now.After(old.RefreshExpiresAt) {
		delete(s.sessions, oldToken)
		_ = s.persistSessionsLocked()
		return Session{}, ErrInvalidToken
	}

	next, err := s.issue(old, now)
	if err != nil {
		return Session{}, err
	}
	delete(s.sessions, oldToken)
	s.sessions[next.AccessToken] = next
	if err := s.persistSessionsLocked(); err != nil {
		delete(s.sessions, next.AccessToken)
		s.sessions[oldToken] = old
		return Session{}, err
	}
	return next, nil
}

func (s *Service) Logout(token string) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrInvalidToken
	}
	delete(s.sessions, token)
	return s.persistSessionsLocked()
}

func (s *Service) ChangePassword(token, currentPassword, newPassword string) error {
	if err := validatePasswordPolicy(newPassword); err != nil {
		return ErrWeakPassword
	}

	sess, err := s.ValidateToken(token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByUsername(sess.Username)
	if err != nil {
		return ErrInvalidCredentials
	}
	if !s.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Put(user); err != nil {
		return fmt.Errorf("store updated password: %w", err)
	}
	return nil
}

func validatePasswordPolicy(password string) error {
	if strings.TrimSpace(password) != password {
		return ErrWeakPassword
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}
	return nil
}

// ListSessions returns every session that can still be used or refreshed,
// oldest first.
func (s *Service) ListSessions() []Session {
	now := s.nowFunc()

	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	out := make([]Session, 0, len(s.sessions))
	dirty := false
	for token, sess := range s.sessions {
		if now.After(sess.RefreshExpiresAt) {
			delete(s.sessions, token)
			dirty = true
			continue
		}
		out = append(out, sess)
	}
	if dirty {
		_ = s.persistSessionsLocked()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Service) ListSessionViews() []SessionView {
	sessions := s.ListSessions()
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionView{
			ID:        sess.ID,
			UserID:    sess.UserID,
			Username:  sess.Username,
			Role:      sess.Role,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}
	return out
}

func (s *Service) RevokeToken(token string) error {
	return s.Logout(token)
}

func (s *Service) RevokeSessionByID(sessionID string) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	foundToken := ""
	for token, sess := range s.sessions {
		if sess.ID == sessionID {
			foundToken = token
			break
		}
	}
	if foundToken == "" {
		return ErrInvalidToken
	}
	delete(s.sessions, foundToken)
	return s.persistSessionsLocked()
}

func (s *Service) LoadSessionState() error {
	if s.sessionStore != nil {
		state, err := s.sessionStore.Load()
		if err != nil {
			return fmt.Errorf("load session state: %w", err)
		}
		s.sessMu.Lock()
		s.sessions = state
		s.sessMu.Unlock()
		return nil
	}

	if s.stateFile == "" {
		return nil
	}
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	state := make(map[string]Session)
	if err := json.Unmarshal(b, &state); err != nil {
		return fmt.Errorf("decode session state: %w", err)
	}

	s.sessMu.Lock()
	s.sessions = state
	s.sessMu.Unlock()
	return nil
}

func (s *Service) persistSessionsLocked() error {
	if s.sessionStore != nil {
		if err := s.sessionStore.Save(s.sessions); err != nil {
			return fmt.Errorf("save session state: %w", err)
		}
		return nil
	}

	if s.stateFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir session state dir: %w", err)
	}
	b, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
