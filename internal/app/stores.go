package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"docuflow/portal/internal/auth"
	"docuflow/portal/internal/config"
	"docuflow/portal/internal/kvstore"
)

// Stores is the persistent side of the portal: the optional database and
// Redis connections, the client state backend and the auth service over them.
type Stores struct {
	DB      *sql.DB
	Redis   *redis.Pool
	Backend kvstore.Backend
	Users   auth.UserStore
	Auth    *auth.Service
}

// OpenStores picks backends from cfg. Postgres holds users and sessions when
// DATABASE_URL is set; client state goes to Redis, then Postgres, then a file.
func OpenStores(cfg config.Config, log *zap.Logger) (*Stores, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stores{}
	if err := s.open(cfg, log); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stores) open(cfg config.Config, log *zap.Logger) error {
	var err error
	if cfg.DatabaseURL != "" {
		s.DB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := s.DB.Ping(); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
	}

	var sessionStore auth.SessionStore
	if s.DB != nil {
		s.Users, err = auth.NewPostgresUserStore(s.DB)
		if err != nil {
			return fmt.Errorf("create postgres user store: %w", err)
		}
		sessionStore, err = auth.NewPostgresSessionStore(s.DB)
		if err != nil {
			return fmt.Errorf("create postgres session store: %w", err)
		}
	} else {
		s.Users, err = auth.NewFileUserStore(cfg.Auth.UserStateFile)
		if err != nil {
			return fmt.Errorf("create user store: %w", err)
		}
	}
	s.Auth, err = auth.NewService(s.Users, auth.ServiceConfig{
		PasswordPepper:   cfg.Auth.PasswordPepper,
		SessionTTL:       cfg.Auth.SessionTTL,
		RefreshTTL:       cfg.Auth.RefreshTTL,
		SessionStateFile: cfg.Auth.SessionStateFile,
		SessionStore:     sessionStore,
	})
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}
	if err := s.Auth.LoadSessionState(); err != nil {
		return fmt.Errorf("load auth session state: %w", err)
	}

	switch {
	case cfg.RedisAddr != "":
		s.Redis = kvstore.NewRedisPool(cfg.RedisAddr)
		s.Backend, err = kvstore.NewRedis(s.Redis)
		log.Info("client state backend", zap.String("kind", "redis"), zap.String("addr", cfg.RedisAddr))
	case s.DB != nil:
		s.Backend, err = kvstore.NewPostgres(s.DB)
		log.Info("client state backend", zap.String("kind", "postgres"))
	default:
		s.Backend, err = kvstore.NewFile(cfg.Client.StateFile)
		log.Info("client state backend", zap.String("kind", "file"), zap.String("path", cfg.Client.StateFile))
	}
	if err != nil {
		return fmt.Errorf("create client state backend: %w", err)
	}
	return nil
}

// EnsureBootstrapUser creates the configured first user if it is missing.
func (s *Stores) EnsureBootstrapUser(cfg config.AuthConfig, log *zap.Logger) error {
	_, err := s.Users.GetByUsername(cfg.BootstrapUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("check bootstrap user: %w", err)
	}
	if _, err := s.Auth.AddUser(cfg.BootstrapUsername, cfg.BootstrapPassword, cfg.BootstrapRole); err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	log.Info("bootstrap auth user created",
		zap.String("username", cfg.BootstrapUsername),
		zap.Stringer("role", cfg.BootstrapRole))
	return nil
}

// Ping reports whether the external stores answer.
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
	}
	if s.Redis != nil {
		conn, err := s.Redis.GetContext(ctx)
		if err != nil {
			return fmt.Errorf("get redis connection: %w", err)
		}
		defer conn.Close()
		if _, err := conn.Do("PING"); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	return nil
}

func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// WaitForDB pings dsn until it answers or timeout passes.
func WaitForDB(ctx context.Context, dsn string, timeout time.Duration, log *zap.Logger) error {
	if dsn == "" {
		return fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		log.Info("waiting for postgres", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
