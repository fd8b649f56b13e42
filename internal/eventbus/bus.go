// Package eventbus is an in-process publish/subscribe registry keyed by
// channel name. Delivery is synchronous and in registration order.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

type Handler func(Event)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription

	now     func() time.Time
	onPanic func(ev Event, recovered any)
}

type Option func(*Bus)

// WithPanicHook is told about handlers that panicked. Later handlers still
// run.
func WithPanicHook(fn func(ev Event, recovered any)) Option {
	return func(b *Bus) { b.onPanic = fn }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[string][]*subscription),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for name. The returned function removes it and may
// be called any number of times.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	s := &subscription{handler: h}
	s.active.Store(true)

	b.mu.Lock()
	b.subs[name] = append(b.subs[name], s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, s) })
	}
}

func (b *Bus) remove(name string, s *subscription) {
	s.active.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, cur := range list {
		if cur == s {
			next := make([]*subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, name)
			} else {
				b.subs[name] = next
			}
			return
		}
	}
}

// Publish calls every handler currently subscribed to name before it
// returns. No lock is held while handlers run, so they may subscribe,
// unsubscribe or publish themselves.
func (b *Bus) Publish(name string, payload any) {
	b.mu.Lock()
	list := b.subs[name]
	b.mu.Unlock()
	if len(list) == 0 {
		return
	}

	ev := Event{Name: name, Payload: payload, At: b.now()}
	for _, s := range list {
		if !s.active.Load() {
			continue
		}
		b.deliver(s.handler, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(ev, r)
		}
	}()
	h(ev)
}

// Subscribers reports how many handlers are registered for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}
