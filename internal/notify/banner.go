package notify

import (
	"sync"
	"time"

	"docuflow/portal/internal/eventbus"
)

const (
	bannerErrorWindow   = 8 * time.Second
	bannerDefaultWindow = 5 * time.Second
)

type BannerMessage struct {
	Kind    eventbus.Kind `json:"type"`
	Message string        `json:"message"`
	ShownAt time.Time     `json:"shown_at"`
	HidesAt time.Time     `json:"hides_at"`
}

// Banner shows a single message; a newer one replaces it. The hide window is
// fixed per kind and ignores the event's duration.
type Banner struct {
	clock Clock
	subs  subscriptions

	mu      sync.Mutex
	current *BannerMessage
	timer   Timer
	gen     uint64
	closed  bool
}

func NewBanner(clock Clock) *Banner {
	if clock == nil {
		clock = SystemClock
	}
	return &Banner{clock: clock}
}

func (b *Banner) Mount(bus Subscriber) {
	b.subs.add(bus, b.handle,
		eventbus.ShowNotification,
		eventbus.LoginError,
		eventbus.LoginSuccess,
	)
}

func bannerWindow(k eventbus.Kind) time.Duration {
	if k == eventbus.KindError {
		return bannerErrorWindow
	}
	return bannerDefaultWindow
}

func (b *Banner) handle(ev eventbus.Event) {
	n, ok := eventbus.AsNotification(ev)
	if !ok {
		return
	}
	msg := sanitize(n.Message)
	if msg == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	now := b.clock.Now()
	window := bannerWindow(n.Kind)
	b.current = &BannerMessage{Kind: n.Kind, Message: msg, ShownAt: now, HidesAt: now.Add(window)}
	b.timer = b.clock.AfterFunc(window, func() { b.hide(gen) })
}

func (b *Banner) hide(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return
	}
	b.current = nil
	b.timer = nil
}

func (b *Banner) Current() (BannerMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return BannerMessage{}, false
	}
	return *b.current, true
}

func (b *Banner) Close() {
	b.subs.release()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	b.current = nil
	b.timer = nil
	b.closed = true
}
