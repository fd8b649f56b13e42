package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"docuflow/portal/internal/eventbus"
)

const DefaultToastLimit = 3

// DefaultToastDurations apply when an event carries no duration.
var DefaultToastDurations = map[eventbus.Kind]time.Duration{
	eventbus.KindError:   8 * time.Second,
	eventbus.KindWarning: 5 * time.Second,
	eventbus.KindInfo:    5 * time.Second,
	eventbus.KindSuccess: 3 * time.Second,
}

type Toast struct {
	ID        string        `json:"id"`
	Kind      eventbus.Kind `json:"type"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type toastEntry struct {
	toast Toast
	timer Timer
}

// Toasts keeps a short queue of visible messages, oldest first. When the
// queue is full the oldest toast is dismissed early.
type Toasts struct {
	clock     Clock
	limit     int
	durations map[eventbus.Kind]time.Duration
	subs      subscriptions

	mu      sync.Mutex
	entries []*toastEntry
	closed  bool
}

type ToastOption func(*Toasts)

func WithToastLimit(n int) ToastOption {
	return func(t *Toasts) {
		if n > 0 {
			t.limit = n
		}
	}
}

func WithToastClock(c Clock) ToastOption {
	return func(t *Toasts) { t.clock = c }
}

func NewToasts(opts ...ToastOption) *Toasts {
	t := &Toasts{
		clock:     SystemClock,
		limit:     DefaultToastLimit,
		durations: DefaultToastDurations,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toasts) Mount(bus Subscriber) {
	t.subs.add(bus, t.handle,
		eventbus.ShowNotification,
		eventbus.LoginError,
		eventbus.LoginSuccess,
		eventbus.UnhandledRejection,
	)
}

func (t *Toasts) handle(ev eventbus.Event) {
	n, ok := eventbus.AsNotification(ev)
	if !ok {
		return
	}
	msg := sanitize(n.Message)
	if msg == "" {
		return
	}
	d := seconds(n.Duration)
	if d <= 0 {
		d = t.durations[n.Kind]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for len(t.entries) >= t.limit {
		t.entries[0].timer.Stop()
		t.entries = t.entries[1:]
	}

	now := t.clock.Now()
	e := &toastEntry{toast: Toast{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(d),
	}}
	id := e.toast.ID
	e.timer = t.clock.AfterFunc(d, func() { t.Dismiss(id) })
	t.entries = append(t.entries, e)
}

// Visible returns the toasts on screen, oldest first.
func (t *Toasts) Visible() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.toast)
	}
	return out
}

func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.toast.ID == id {
			e.timer.Stop()
			t.entries = append(t.entries[:i:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Toasts) Close() {
	t.subs.release()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.timer.Stop()
	}
	t.entries = nil
	t.closed = true
}
