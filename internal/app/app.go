package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docuflow/portal/internal/audit"
	"docuflow/portal/internal/config"
	"docuflow/portal/internal/httpserver"
	"docuflow/portal/internal/lifecycle"
	"docuflow/portal/internal/shell"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	stores *Stores
	events lifecycle.Bus
	shells *shell.Registry
	server *httpserver.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	stores, err := OpenStores(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := stores.EnsureBootstrapUser(cfg.Auth, log); err != nil {
		stores.Close()
		return nil, err
	}

	events := lifecycle.NewBus()
	if err := subscribeLifecycle(events, log); err != nil {
		stores.Close()
		return nil, err
	}

	shells, err := shell.NewRegistry(stores.Backend, cfg.Client.CacheSize, shell.Options{Log: log}, events)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("create client registry: %w", err)
	}

	server := httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:            stores.Auth,
		Shells:          shells,
		Audit:           audit.NewLogger(cfg.AuditLogFile, log),
		Events:          events,
		Log:             log.Named("http"),
		Ready:           stores.Ping,
		FrontendDistDir: cfg.FrontendDistDir,
		CookieSecure:    cfg.Client.CookieSecure,
		DevMockLogin:    cfg.DevMockLogin,
	})
	if cfg.DevMockLogin {
		log.Warn("development mock login is enabled")
	}

	return &App{
		cfg:    cfg,
		log:    log,
		stores: stores,
		events: events,
		shells: shells,
		server: server,
	}, nil
}

func subscribeLifecycle(events lifecycle.Bus, log *zap.Logger) error {
	if err := events.Subscribe(lifecycle.TopicShellClosed, func(clientID string) {
		log.Debug("client shell closed", zap.String("client_id", clientID))
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", lifecycle.TopicShellClosed, err)
	}
	if err := events.Subscribe(lifecycle.TopicSessionCleared, func(clientID, actor string) {
		log.Info("client session cleared", zap.String("client_id", clientID), zap.String("actor", actor))
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", lifecycle.TopicSessionCleared, err)
	}
	return nil
}

// Run serves until ctx is cancelled or the listener fails, then shuts the
// server down and releases the stores.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server starting", zap.String("addr", a.cfg.HTTP.Addr))
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) close() {
	a.shells.Close()
	a.stores.Close()
	_ = a.log.Sync()
}
