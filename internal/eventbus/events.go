package eventbus

import "time"

// Channel names shared with the browser front-end.
const (
	ShowNotification   = "showNotification"
	LoginError         = "login-error"
	LoginSuccess       = "login-success"
	RenderError        = "react-error"
	UnhandledRejection = "unhandledrejection"
)

// Channels lists every name a presenter may subscribe to.
func Channels() []string {
	return []string{ShowNotification, LoginError, LoginSuccess, RenderError, UnhandledRejection}
}

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindInfo, KindWarning:
		return true
	}
	return false
}

type Event struct {
	Name    string
	Payload any
	At      time.Time
}

// Notification is the showNotification payload. Duration is in seconds; zero
// means the presenter's default for Kind.
type Notification struct {
	Kind     Kind    `json:"type"`
	Message  string  `json:"message"`
	Duration float64 `json:"duration,omitempty"`
}

type LoginFailed struct {
	Message string `json:"message"`
}

type LoginSucceeded struct {
	Message  string `json:"message"`
	UserData any    `json:"userData,omitempty"`
}

type RenderFault struct {
	Error string `json:"error"`
	Info  string `json:"info,omitempty"`
}

type Rejection struct {
	Reason string `json:"reason"`
}

const (
	genericErrorMessage  = "An unexpected error occurred. Please try again."
	renderFailureMessage = "Something went wrong while displaying this page."
)

// AsNotification maps any channel's payload onto the user-facing shape.
func AsNotification(ev Event) (Notification, bool) {
	switch p := ev.Payload.(type) {
	case Notification:
		if !p.Kind.Valid() {
			p.Kind = KindInfo
		}
		return p, true
	case LoginFailed:
		return Notification{Kind: KindError, Message: p.Message}, true
	case LoginSucceeded:
		return Notification{Kind: KindSuccess, Message: p.Message}, true
	case RenderFault:
		return Notification{Kind: KindError, Message: renderFailureMessage}, true
	case Rejection:
		return Notification{Kind: KindError, Message: genericErrorMessage}, true
	}
	return Notification{}, false
}
