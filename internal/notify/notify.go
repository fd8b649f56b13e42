// Package notify holds the notification presenters. Each presenter subscribes
// to the event bus on Mount and releases its subscriptions and timers on
// Close; presenters never know about each other.
package notify

import (
	"html"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"docuflow/portal/internal/eventbus"
)

type Subscriber interface {
	Subscribe(name string, h eventbus.Handler) (unsubscribe func())
}

type Presenter interface {
	Mount(bus Subscriber)
	Close()
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock schedules on real timers.
var SystemClock Clock = systemClock{}

var strictPolicy = bluemonday.StrictPolicy()

// maxUnescapeRounds bounds how many layers of entity escaping sanitize peels.
const maxUnescapeRounds = 4

// sanitize strips markup so producers cannot inject HTML into presenters.
// Escaped markup is decoded and stripped again until the text is stable, so
// the plain-text result never decodes into a tag. Input that is still
// changing after maxUnescapeRounds is returned in escaped form.
func sanitize(msg string) string {
	for i := 0; i < maxUnescapeRounds; i++ {
		clean := html.UnescapeString(strictPolicy.Sanitize(msg))
		if clean == msg {
			return strings.TrimSpace(clean)
		}
		msg = clean
	}
	return strings.TrimSpace(strictPolicy.Sanitize(msg))
}

// subscriptions tracks what a presenter registered so Close can undo it.
type subscriptions struct {
	mu     sync.Mutex
	unsubs []func()
}

func (s *subscriptions) add(bus Subscriber, h eventbus.Handler, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.unsubs = append(s.unsubs, bus.Subscribe(name, h))
	}
}

func (s *subscriptions) release() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
