// Package lifecycle carries process-level signals between components that
// should not import each other.
package lifecycle

import "github.com/asaskevich/EventBus"

const (
	// TopicShellClosed is published with the client id when a client shell
	// is torn down.
	TopicShellClosed = "shell:closed"
	// TopicSessionCleared is published with (clientID, actor string) after an
	// emergency clear.
	TopicSessionCleared = "session:cleared"
)

type Bus = EventBus.Bus

type Publisher = EventBus.BusPublisher

func NewBus() Bus {
	return EventBus.New()
}
