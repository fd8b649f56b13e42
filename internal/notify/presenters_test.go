package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docuflow/portal/internal/eventbus"
)

func TestTwoPresentersRenderTheSameEvent(t *testing.T) {
	clock := newFakeClock()
	bus := eventbus.New()
	toasts := NewToasts(WithToastClock(clock))
	banner := NewBanner(clock)
	toasts.Mount(bus)
	banner.Mount(bus)
	defer toasts.Close()
	defer banner.Close()

	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindError, Message: "X", Duration: 8})

	visible := toasts.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "X", visible[0].Message)
	msg, ok := banner.Current()
	require.True(t, ok)
	assert.Equal(t, "X", msg.Message)

	clock.Advance(8 * time.Second)
	assert.Empty(t, toasts.Visible())
	_, ok = banner.Current()
	assert.False(t, ok)
}

func TestUnmountedPresenterReceivesNothing(t *testing.T) {
	clock := newFakeClock()
	bus := eventbus.New()
	banner := NewBanner(clock)
	banner.Mount(bus)
	banner.Close()

	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindInfo, Message: "X"})
	_, ok := banner.Current()
	assert.False(t, ok)
}

func TestBannerReplacesAndUsesFixedWindow(t *testing.T) {
	clock := newFakeClock()
	bus := eventbus.New()
	banner := NewBanner(clock)
	banner.Mount(bus)
	defer banner.Close()

	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindError, Message: "first", Duration: 60})
	clock.Advance(4 * time.Second)
	bus.Publish(eventbus.LoginSuccess, eventbus.LoginSucceeded{Message: "welcome"})

	msg, ok := banner.Current()
	require.True(t, ok)
	assert.Equal(t, "welcome", msg.Message)

	// The replaced message's timer must not hide the new one.
	clock.Advance(4 * time.Second)
	_, ok = banner.Current()
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = banner.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, clock.pending())
}

func TestModalHoldsUntilDismissed(t *testing.T) {
	clock := newFakeClock()
	bus := eventbus.New()
	modal := NewModal(clock)
	modal.Mount(bus)
	defer modal.Close()

	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindInfo, Message: "ignored"})
	_, ok := modal.Current()
	assert.False(t, ok)

	bus.Publish(eventbus.RenderError, eventbus.RenderFault{Error: "nil map", Info: "/admin/dashboard"})
	d, ok := modal.Current()
	require.True(t, ok)
	assert.Equal(t, "Something went wrong", d.Title)

	clock.Advance(time.Hour)
	_, ok = modal.Current()
	assert.True(t, ok)

	assert.True(t, modal.Dismiss())
	assert.False(t, modal.Dismiss())
}

func TestLoggerRecordsEveryChannel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := eventbus.New()
	l := NewLogger(zap.New(core))
	l.Mount(bus)
	defer l.Close()

	bus.Publish(eventbus.LoginError, eventbus.LoginFailed{Message: "bad"})
	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindSuccess, Message: "ok"})
	bus.Publish(eventbus.RenderError, eventbus.RenderFault{Error: "boom"})
	bus.Publish(eventbus.UnhandledRejection, "raw reason")

	require.Equal(t, 4, logs.Len())
	entries := logs.All()
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, eventbus.LoginError, entries[0].ContextMap()["channel"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "raw reason", entries[3].ContextMap()["payload"])
}

func TestRelayFansOutAndDropsForSlowFeeds(t *testing.T) {
	bus := eventbus.New()
	relay := NewRelay(1)
	relay.Mount(bus)

	fast, detachFast := relay.Attach()
	slow, _ := relay.Attach()
	assert.Equal(t, 2, relay.Feeds())

	bus.Publish(eventbus.LoginSuccess, eventbus.LoginSucceeded{Message: "hi"})
	frame := <-fast
	assert.Equal(t, eventbus.LoginSuccess, frame.Channel)
	require.NotNil(t, frame.Notification)
	assert.Equal(t, eventbus.KindSuccess, frame.Notification.Kind)

	// slow has not drained its single slot; this frame is dropped for it.
	bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: eventbus.KindInfo, Message: "two"})
	<-fast
	assert.Equal(t, 1, relay.Dropped())

	detachFast()
	detachFast()
	assert.Equal(t, 1, relay.Feeds())

	relay.Close()
	first, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, eventbus.LoginSuccess, first.Channel)
	_, ok = <-slow
	assert.False(t, ok, "close must end every feed")

	late, _ := relay.Attach()
	_, ok = <-late
	assert.False(t, ok)
}

func TestRelayKeepsFaultDetailsServerSide(t *testing.T) {
	bus := eventbus.New()
	relay := NewRelay(4)
	relay.Mount(bus)
	defer relay.Close()

	feed, detach := relay.Attach()
	defer detach()

	bus.Publish(eventbus.UnhandledRejection, eventbus.Rejection{Reason: "pq: connection refused"})
	bus.Publish(eventbus.RenderError, eventbus.RenderFault{Error: "runtime error: index out of range", Info: "/admin"})
	bus.Publish(eventbus.LoginSuccess, eventbus.LoginSucceeded{Message: "<b>Welcome</b>", UserData: "u-1"})

	rejection := <-feed
	assert.Nil(t, rejection.Payload)
	require.NotNil(t, rejection.Notification)
	assert.NotContains(t, rejection.Notification.Message, "pq:")

	fault := <-feed
	assert.Nil(t, fault.Payload)
	require.NotNil(t, fault.Notification)
	assert.NotContains(t, fault.Notification.Message, "index out of range")

	login := <-feed
	assert.Equal(t, eventbus.LoginSucceeded{Message: "Welcome", UserData: "u-1"}, login.Payload)
}
