// Package notify delivers short, non-blocking user feedback.
package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

type Level int

const (
	Success Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

type Notification struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

// Log reports notifications through logger.
func Log(logger *zap.SugaredLogger) Notifier {
	return NotifierFunc(func(n Notification) {
		switch n.Level {
		case Error:
			logger.Errorw(n.Message, "level", n.Level.String())
		case Warning:
			logger.Warnw(n.Message, "level", n.Level.String())
		default:
			logger.Infow(n.Message, "level", n.Level.String())
		}
	})
}

// Writer prints one line per notification.
func Writer(w io.Writer) Notifier {
	var mu sync.Mutex
	return NotifierFunc(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(w, "%s: %s\n", n.Level, n.Message)
	})
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Tee fans a notification out to several notifiers.
func Tee(ns ...Notifier) Notifier {
	return NotifierFunc(func(n Notification) {
		for _, x := range ns {
			x.Notify(n)
		}
	})
}
