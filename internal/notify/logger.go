package notify

import (
	"fmt"

	"go.uber.org/zap"

	"docuflow/portal/internal/eventbus"
)

// Logger records every channel and renders nothing. A failure while
// recording is swallowed.
type Logger struct {
	log  *zap.Logger
	subs subscriptions
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log}
}

func (l *Logger) Mount(bus Subscriber) {
	l.subs.add(bus, l.handle, eventbus.Channels()...)
}

func (l *Logger) handle(ev eventbus.Event) {
	defer func() { _ = recover() }()

	fields := []zap.Field{
		zap.String("channel", ev.Name),
		zap.Time("at", ev.At),
	}
	switch p := ev.Payload.(type) {
	case eventbus.Notification:
		fields = append(fields, zap.String("kind", string(p.Kind)), zap.String("message", p.Message), zap.Float64("duration", p.Duration))
	case eventbus.LoginFailed:
		fields = append(fields, zap.String("message", p.Message))
	case eventbus.LoginSucceeded:
		fields = append(fields, zap.String("message", p.Message))
	case eventbus.RenderFault:
		fields = append(fields, zap.String("error", p.Error), zap.String("info", p.Info))
	case eventbus.Rejection:
		fields = append(fields, zap.String("reason", p.Reason))
	default:
		fields = append(fields, zap.String("payload", fmt.Sprintf("%v", p)))
	}

	switch ev.Name {
	case eventbus.RenderError, eventbus.UnhandledRejection, eventbus.LoginError:
		l.log.Warn("notification event", fields...)
	default:
		l.log.Info("notification event", fields...)
	}
}

func (l *Logger) Close() {
	l.subs.release()
}
