package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"docuflow/portal/internal/config"
	"docuflow/portal/internal/kvstore"
	"docuflow/portal/internal/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTP: config.HTTPConfig{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			BootstrapUsername: "ops",
			BootstrapPassword: "Bootstrap123!",
			BootstrapRole:     session.RoleDepartment,
			PasswordPepper:    "pepper",
			SessionTTL:        time.Minute,
			RefreshTTL:        time.Hour,
			SessionStateFile:  filepath.Join(dir, "sessions.json"),
			UserStateFile:     filepath.Join(dir, "users.json"),
		},
		Client: config.ClientConfig{
			StateFile: filepath.Join(dir, "client_state.json"),
			CacheSize: 4,
		},
		FrontendDistDir: filepath.Join(dir, "dist"),
		AuditLogFile:    filepath.Join(dir, "audit.log"),
	}
}

func TestOpenStoresUsesFileBackends(t *testing.T) {
	cfg := testConfig(t)
	stores, err := OpenStores(cfg, nil)
	require.NoError(t, err)
	defer stores.Close()

	_, ok := stores.Backend.(*kvstore.File)
	assert.True(t, ok, "expected file client state backend, got %T", stores.Backend)
	assert.Nil(t, stores.DB)
	assert.Nil(t, stores.Redis)
	assert.NoError(t, stores.Ping(context.Background()))
}

func TestEnsureBootstrapUserIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	stores, err := OpenStores(cfg, log)
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.EnsureBootstrapUser(cfg.Auth, log))
	require.NoError(t, stores.EnsureBootstrapUser(cfg.Auth, log))
	assert.Equal(t, 1, logs.FilterMessage("bootstrap auth user created").Len())

	sess, err := stores.Auth.Login("ops", "Bootstrap123!")
	require.NoError(t, err)
	assert.Equal(t, session.RoleDepartment, sess.Role)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
