// Package notify carries user-visible outcomes from the workflow core to
// whatever surface is driving it.
package notify

import (
	"sync"

	"tender-workflow/internal/common/errors"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message for the user. Code is empty for plain info.
type Notification struct {
	Level   Level
	Code    errors.ErrorCode
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(Notification) {}

// FromError builds an error notification from any error.
func FromError(err error) Notification {
	return Notification{
		Level:   LevelError,
		Code:    errors.CodeOf(err),
		Message: errors.MessageOf(err),
	}
}

// Recorder keeps every notification; handy for headless callers such as job workers.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Last returns the latest notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}
