package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docuflow/portal/internal/session"
)

type Config struct {
	HTTP            HTTPConfig
	DatabaseURL     string
	RedisAddr       string
	Auth            AuthConfig
	Client          ClientConfig
	FrontendDistDir string
	AuditLogFile    string
	LogLevel        string
	DevMockLogin    bool
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	BootstrapUsername string
	BootstrapPassword string
	BootstrapRole     session.Role
	PasswordPepper    string
	SessionTTL        time.Duration
	RefreshTTL        time.Duration
	SessionStateFile  string
	UserStateFile     string
}

// ClientConfig covers per-browser state: where each client's stored session
// lives and how many client shells stay mounted.
type ClientConfig struct {
	StateFile    string
	CacheSize    int
	CookieSecure bool
}

// Load reads the environment. If CONFIG_FILE names a YAML file of KEY: value
// pairs, its values are used for keys the environment leaves unset.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

func LoadFile(path string) (Config, error) {
	src, err := newSource(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            src.getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(src.getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(src.getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(src.getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL: src.getEnv("DATABASE_URL", ""),
		RedisAddr:   src.getEnv("REDIS_ADDR", ""),
		Auth: AuthConfig{
			BootstrapUsername: src.getEnv("AUTH_BOOTSTRAP_USERNAME", "admin"),
			BootstrapPassword: src.getEnv("AUTH_BOOTSTRAP_PASSWORD", "admin123"),
			PasswordPepper:    src.getEnv("AUTH_PASSWORD_PEPPER", "change-me-in-production"),
			SessionTTL:        time.Duration(src.getEnvInt("AUTH_SESSION_TTL_SEC", 3600)) * time.Second,
			RefreshTTL:        time.Duration(src.getEnvInt("AUTH_REFRESH_TTL_SEC", 7*24*3600)) * time.Second,
			SessionStateFile:  src.getEnv("AUTH_SESSION_STATE_FILE", "./data/auth_sessions.json"),
			UserStateFile:     src.getEnv("AUTH_USER_STATE_FILE", "./data/auth_users.json"),
		},
		Client: ClientConfig{
			StateFile:    src.getEnv("CLIENT_STATE_FILE", "./data/client_state.json"),
			CacheSize:    src.getEnvInt("CLIENT_CACHE_SIZE", 1024),
			CookieSecure: src.getEnvBool("COOKIE_SECURE", false),
		},
		FrontendDistDir: src.getEnv("FRONTEND_DIST_DIR", "./web/dist"),
		AuditLogFile:    src.getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:        src.getEnv("LOG_LEVEL", "info"),
		DevMockLogin:    src.getEnvBool("DEV_MOCK_LOGIN", false),
	}

	role, err := session.ParseRole(src.getEnv("AUTH_BOOTSTRAP_ROLE", string(session.RoleAdmin)))
	if err != nil {
		return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_ROLE: %w", err)
	}
	cfg.Auth.BootstrapRole = role

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.Auth.BootstrapUsername == "" {
		return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_USERNAME must not be empty")
	}
	if cfg.Auth.BootstrapPassword == "" {
		return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
	}
	if cfg.Auth.PasswordPepper == "" {
		return Config{}, fmt.Errorf("AUTH_PASSWORD_PEPPER must not be empty")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("AUTH_SESSION_TTL_SEC must be > 0")
	}
	if cfg.Auth.RefreshTTL < cfg.Auth.SessionTTL {
		return Config{}, fmt.Errorf("AUTH_REFRESH_TTL_SEC must be >= AUTH_SESSION_TTL_SEC")
	}
	if cfg.Auth.SessionStateFile == "" {
		return Config{}, fmt.Errorf("AUTH_SESSION_STATE_FILE must not be empty")
	}
	if cfg.Auth.UserStateFile == "" {
		return Config{}, fmt.Errorf("AUTH_USER_STATE_FILE must not be empty")
	}
	if cfg.Client.StateFile == "" {
		return Config{}, fmt.Errorf("CLIENT_STATE_FILE must not be empty")
	}
	if cfg.Client.CacheSize <= 0 {
		return Config{}, fmt.Errorf("CLIENT_CACHE_SIZE must be > 0")
	}
	if cfg.FrontendDistDir == "" {
		return Config{}, fmt.Errorf("FRONTEND_DIST_DIR must not be empty")
	}
	if cfg.AuditLogFile == "" {
		return Config{}, fmt.Errorf("AUDIT_LOG_FILE must not be empty")
	}

	return cfg, nil
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	path = strings.TrimSpace(path)
	if path == "" {
		return src, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return src, fmt.Errorf("decode config file: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s source) lookup(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val, true
	}
	val, ok := s.file[key]
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (s source) getEnv(key, fallback string) string {
	val, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	return val
}

func (s source) getEnvInt(key string, fallback int) int {
	val, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) getEnvBool(key string, fallback bool) bool {
	val, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
