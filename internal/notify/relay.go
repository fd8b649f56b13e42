package notify

import (
	"sync"
	"time"

	"docuflow/portal/internal/eventbus"
)

const defaultFeedBuffer = 16

type Frame struct {
	Channel      string                 `json:"channel"`
	At           time.Time              `json:"at"`
	Notification *eventbus.Notification `json:"notification,omitempty"`
	Payload      any                    `json:"payload,omitempty"`
}

type feed struct {
	ch chan Frame
}

// Relay copies every event to the live feeds attached to it. A feed that is
// not keeping up loses frames; Publish is never blocked by a reader.
type Relay struct {
	buffer int
	subs   subscriptions

	mu      sync.Mutex
	feeds   map[*feed]struct{}
	dropped int
	closed  bool
}

func NewRelay(buffer int) *Relay {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	return &Relay{buffer: buffer, feeds: make(map[*feed]struct{})}
}

func (r *Relay) Mount(bus Subscriber) {
	r.subs.add(bus, r.handle, eventbus.Channels()...)
}

func (r *Relay) handle(ev eventbus.Event) {
	frame := Frame{Channel: ev.Name, At: ev.At, Payload: feedPayload(ev.Payload)}
	if n, ok := eventbus.AsNotification(ev); ok {
		n.Message = sanitize(n.Message)
		frame.Notification = &n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for f := range r.feeds {
		select {
		case f.ch <- frame:
		default:
			r.dropped++
		}
	}
}

// Attach opens a feed. The channel is closed by detach or by Close.
func (r *Relay) Attach() (<-chan Frame, func()) {
	f := &feed{ch: make(chan Frame, r.buffer)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(f.ch)
		return f.ch, func() {}
	}
	r.feeds[f] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return f.ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.feeds[f]; ok {
				delete(r.feeds, f)
				close(f.ch)
			}
		})
	}
}

// feedPayload is the part of a payload a browser may see besides the
// notification. Fault and rejection details stay server-side.
func feedPayload(p any) any {
	switch p := p.(type) {
	case eventbus.LoginSucceeded:
		return eventbus.LoginSucceeded{Message: sanitize(p.Message), UserData: p.UserData}
	default:
		return nil
	}
}

// Dropped counts frames lost to feeds that were not keeping up.
func (r *Relay) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Relay) Feeds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

func (r *Relay) Close() {
	r.subs.release()

	r.mu.Lock()
	defer r.mu.Unlock()
	for f := range r.feeds {
		close(f.ch)
		delete(r.feeds, f)
	}
	r.closed = true
}
