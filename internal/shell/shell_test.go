package shell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuflow/portal/internal/eventbus"
	"docuflow/portal/internal/kvstore"
	"docuflow/portal/internal/lifecycle"
	"docuflow/portal/internal/session"
)

func newTestShell() *Shell {
	return New("c1", kvstore.Bind(kvstore.NewMemory(), "c1"), kvstore.Bind(kvstore.NewMemory(), "c1"), Options{})
}

func TestShellMountsRedundantPresenters(t *testing.T) {
	s := newTestShell()
	defer s.Close()

	assert.Equal(t, 4, s.Bus.Subscribers(eventbus.ShowNotification), "toasts, banner, logger, relay")
	assert.Equal(t, 5, s.Bus.Subscribers(eventbus.LoginError), "toasts, banner, logger, modal, relay")

	s.Bus.Publish(eventbus.LoginError, eventbus.LoginFailed{Message: "invalid credentials"})

	require.Len(t, s.Toasts.Visible(), 1)
	b, ok := s.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, "invalid credentials", b.Message)
	d, ok := s.Modal.Current()
	require.True(t, ok)
	assert.Equal(t, "Sign-in failed", d.Title)
}

func TestShellCloseUnsubscribesEverything(t *testing.T) {
	s := newTestShell()
	s.Close()
	s.Close()

	for _, ch := range eventbus.Channels() {
		assert.Equal(t, 0, s.Bus.Subscribers(ch), ch)
	}
}

func TestCaptureAndRenderFault(t *testing.T) {
	s := newTestShell()
	defer s.Close()

	s.Capture(nil)
	assert.Empty(t, s.Toasts.Visible())

	s.Capture(errors.New("upstream timeout"))
	require.Len(t, s.Toasts.Visible(), 1)
	assert.Equal(t, eventbus.KindError, s.Toasts.Visible()[0].Kind)

	s.RenderFault("index out of range", "/admin/dashboard")
	d, ok := s.Modal.Current()
	require.True(t, ok)
	assert.Equal(t, "Something went wrong", d.Title)
}

func TestRegistryReusesAndEvicts(t *testing.T) {
	events := lifecycle.NewBus()
	var closed []string
	require.NoError(t, events.Subscribe(lifecycle.TopicShellClosed, func(id string) { closed = append(closed, id) }))

	backend := kvstore.NewMemory()
	reg, err := NewRegistry(backend, 2, Options{}, events)
	require.NoError(t, err)

	a, err := reg.Get("a")
	require.NoError(t, err)
	again, err := reg.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	require.NoError(t, a.Session.Login(session.Record{
		AccessToken: "tok", User: session.User{ID: "u", Role: session.RoleEmployee},
	}, session.NewMemoryJar()))

	_, err = reg.Get("b")
	require.NoError(t, err)
	_, err = reg.Get("c")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, closed)
	assert.Equal(t, 0, a.Bus.Subscribers(eventbus.ShowNotification))

	// The stored session outlives the shell.
	fresh, err := reg.Get("a")
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)
	assert.True(t, fresh.Session.IsAuthenticated())

	reg.Close()
	assert.Equal(t, 0, reg.Len())
	_, err = reg.Get(" ")
	assert.Error(t, err)
}
