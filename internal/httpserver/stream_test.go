package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuflow/portal/internal/eventbus"
	"docuflow/portal/internal/kvstore"
	"docuflow/portal/internal/notify"
	"docuflow/portal/internal/shell"
)

func TestNotificationStreamRelaysEvents(t *testing.T) {
	shells, err := shell.NewRegistry(kvstore.NewMemory(), 4, shell.Options{}, nil)
	require.NoError(t, err)
	defer shells.Close()

	srv := httptest.NewServer(NewHandler(Deps{Shells: shells}))
	defer srv.Close()

	clientID := uuid.NewString()
	header := http.Header{}
	header.Set("Cookie", ClientCookie+"="+clientID)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	sh, ok := shells.Peek(clientID)
	require.True(t, ok)
	require.Eventually(t, func() bool { return sh.Relay.Feeds() == 1 }, 2*time.Second, 10*time.Millisecond)

	sh.Notify(eventbus.KindSuccess, "Document <i>approved</i>")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame notify.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, eventbus.ShowNotification, frame.Channel)
	require.NotNil(t, frame.Notification)
	assert.Equal(t, eventbus.KindSuccess, frame.Notification.Kind)
	assert.Equal(t, "Document approved", frame.Notification.Message)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return sh.Relay.Feeds() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationStreamClosesWithShell(t *testing.T) {
	shells, err := shell.NewRegistry(kvstore.NewMemory(), 4, shell.Options{}, nil)
	require.NoError(t, err)
	defer shells.Close()

	srv := httptest.NewServer(NewHandler(Deps{Shells: shells}))
	defer srv.Close()

	clientID := uuid.NewString()
	header := http.Header{}
	header.Set("Cookie", ClientCookie+"="+clientID)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	sh, ok := shells.Peek(clientID)
	require.True(t, ok)
	require.Eventually(t, func() bool { return sh.Relay.Feeds() == 1 }, 2*time.Second, 10*time.Millisecond)

	shells.Remove(clientID)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestNotificationStreamHidesFailureDetails(t *testing.T) {
	shells, err := shell.NewRegistry(kvstore.NewMemory(), 4, shell.Options{}, nil)
	require.NoError(t, err)
	defer shells.Close()

	srv := httptest.NewServer(NewHandler(Deps{Shells: shells}))
	defer srv.Close()

	clientID := uuid.NewString()
	header := http.Header{}
	header.Set("Cookie", ClientCookie+"="+clientID)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	sh, ok := shells.Peek(clientID)
	require.True(t, ok)
	require.Eventually(t, func() bool { return sh.Relay.Feeds() == 1 }, 2*time.Second, 10*time.Millisecond)

	sh.Capture(errors.New("pq: password authentication failed for user \"docuflow\""))
	sh.RenderFault("nil map write in dashboard", "/admin/dashboard")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, channel := range []string{eventbus.UnhandledRejection, eventbus.RenderError} {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, `"channel":"`+channel+`"`)
		assert.NotContains(t, body, "password authentication failed")
		assert.NotContains(t, body, "nil map write")
		assert.NotContains(t, body, `"payload"`)
		assert.Contains(t, body, `"type":"error"`)
	}
}
