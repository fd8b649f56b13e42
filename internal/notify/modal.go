package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"docuflow/portal/internal/eventbus"
)

type Dialog struct {
	ID       string        `json:"id"`
	Kind     eventbus.Kind `json:"type"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	OpenedAt time.Time     `json:"opened_at"`
}

// Modal holds one message that stays until the user acknowledges it.
type Modal struct {
	clock Clock
	subs  subscriptions

	mu      sync.Mutex
	current *Dialog
	closed  bool
}

func NewModal(clock Clock) *Modal {
	if clock == nil {
		clock = SystemClock
	}
	return &Modal{clock: clock}
}

func (m *Modal) Mount(bus Subscriber) {
	m.subs.add(bus, m.handle,
		eventbus.LoginError,
		eventbus.LoginSuccess,
		eventbus.RenderError,
	)
}

func modalTitle(channel string) string {
	switch channel {
	case eventbus.LoginError:
		return "Sign-in failed"
	case eventbus.LoginSuccess:
		return "Signed in"
	default:
		return "Something went wrong"
	}
}

func (m *Modal) handle(ev eventbus.Event) {
	n, ok := eventbus.AsNotification(ev)
	if !ok {
		return
	}
	msg := sanitize(n.Message)
	if msg == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.current = &Dialog{
		ID:       uuid.NewString(),
		Kind:     n.Kind,
		Title:    modalTitle(ev.Name),
		Message:  msg,
		OpenedAt: m.clock.Now(),
	}
}

func (m *Modal) Current() (Dialog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Dialog{}, false
	}
	return *m.current, true
}

func (m *Modal) Dismiss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false
	}
	m.current = nil
	return true
}

func (m *Modal) Close() {
	m.subs.release()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.closed = true
}
