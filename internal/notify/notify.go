// Package notify carries user-facing notifications from the dictation and
// scribes components to whatever surface displays them.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/observability/logging"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to a Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Info builds an info notification.
func Info(msg string) Notification { return New(LevelInfo, msg) }

// Success builds a success notification.
func Success(msg string) Notification { return New(LevelSuccess, msg) }

// Warning builds a warning notification.
func Warning(msg string) Notification { return New(LevelWarning, msg) }

// Error builds an error notification.
func Error(msg string) Notification { return New(LevelError, msg) }

// New builds a notification stamped with the current time.
func New(level Level, msg string) Notification {
	return Notification{Level: level, Message: msg, Timestamp: time.Now().UTC()}
}

// LogNotifier writes notifications to the service log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier logging under the given component.
func NewLogNotifier(component string) *LogNotifier {
	return &LogNotifier{log: logging.WithComponent(component)}
}

func (l *LogNotifier) Notify(n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = l.log.Error()
	case LevelWarning:
		ev = l.log.Warn()
	default:
		ev = l.log.Info()
	}
	ev.Str("level", string(n.Level)).
		Str("sessionId", n.SessionID).
		Str("source", n.Component).
		Msg(n.Message)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, t := range m {
		if t != nil {
			t.Notify(n)
		}
	}
}

// Recorder keeps every notification. Used by tests and the CLI status view.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.all))
	for i, n := range r.all {
		out[i] = n.Message
	}
	return out
}
