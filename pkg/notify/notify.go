// Package notify is the toast-notification seam: load-job outcomes are
// announced to the user through a Notifier, whatever the front end is.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier surfaces user-facing success and error announcements.
type Notifier interface {
	Success(title, description string)
	Error(title, description string)
}

// Log announces through the application logger; this is the CLI's toast
// equivalent.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Notifier writing to logger.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notify")}
}

func (l *Log) Success(title, description string) {
	l.logger.Info(title, zap.String("detail", description))
}

func (l *Log) Error(title, description string) {
	l.logger.Error(title, zap.String("detail", description))
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Success(string, string) {}
func (Nop) Error(string, string)   {}

// Notification is one recorded announcement.
type Notification struct {
	Level       string // "success" or "error"
	Title       string
	Description string
}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *Recorder) Success(title, description string) {
	r.record("success", title, description)
}

func (r *Recorder) Error(title, description string) {
	r.record("error", title, description)
}

func (r *Recorder) record(level, title, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, Notification{Level: level, Title: title, Description: description})
}

// All returns a copy of the recorded notifications in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}
