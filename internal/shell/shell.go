// Package shell is the per-client context: one event bus, the session reader
// and guard bound to the client's stores, and the mounted presenters.
package shell

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"docuflow/portal/internal/eventbus"
	"docuflow/portal/internal/guard"
	"docuflow/portal/internal/notify"
	"docuflow/portal/internal/session"
)

type Options struct {
	Clock      notify.Clock
	ToastLimit int
	FeedBuffer int
	Log        *zap.Logger
}

type Shell struct {
	ID      string
	Bus     *eventbus.Bus
	Session *session.Reader
	Guard   *guard.Guard

	Toasts *notify.Toasts
	Banner *notify.Banner
	Modal  *notify.Modal
	Relay  *notify.Relay

	log        *zap.Logger
	presenters []notify.Presenter
	closeOnce  sync.Once
}

func New(id string, local, scoped session.KV, opts Options) *Shell {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("client_id", id))
	clock := opts.Clock
	if clock == nil {
		clock = notify.SystemClock
	}

	s := &Shell{ID: id, log: log}
	s.Bus = eventbus.New(eventbus.WithPanicHook(func(ev eventbus.Event, r any) {
		log.Error("notification handler panicked", zap.String("channel", ev.Name), zap.Any("panic", r))
	}))
	s.Session = session.NewReader(local, scoped, log)
	s.Guard = guard.New(s.Session, log)

	s.Toasts = notify.NewToasts(notify.WithToastClock(clock), notify.WithToastLimit(opts.ToastLimit))
	s.Banner = notify.NewBanner(clock)
	s.Modal = notify.NewModal(clock)
	s.Relay = notify.NewRelay(opts.FeedBuffer)
	s.presenters = []notify.Presenter{
		s.Toasts,
		s.Banner,
		notify.NewLogger(log),
		s.Modal,
		s.Relay,
	}
	for _, p := range s.presenters {
		p.Mount(s.Bus)
	}
	return s
}

func (s *Shell) Notify(kind eventbus.Kind, message string) {
	s.Bus.Publish(eventbus.ShowNotification, eventbus.Notification{Kind: kind, Message: message})
}

// Capture reports a failure nobody handled. The user sees a generic error.
func (s *Shell) Capture(err error) {
	if err == nil {
		return
	}
	s.Bus.Publish(eventbus.UnhandledRejection, eventbus.Rejection{Reason: err.Error()})
}

// RenderFault reports a failure that stopped a page from rendering.
func (s *Shell) RenderFault(recovered any, info string) {
	s.Bus.Publish(eventbus.RenderError, eventbus.RenderFault{Error: fmt.Sprint(recovered), Info: info})
}

// Close unmounts every presenter. Safe to call more than once.
func (s *Shell) Close() {
	s.closeOnce.Do(func() {
		for _, p := range s.presenters {
			p.Close()
		}
	})
}
