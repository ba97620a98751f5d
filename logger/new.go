// Package logger provides the structured logger shared by every component
// that needs to report progress or failure: internal/lock, internal/store,
// and the jobstore facade.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging interface the store depends on. It is
// satisfied by *logrus.Entry, which lets call sites pass a real logrus
// logger straight through without an adapter.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New returns a component-scoped logger. Name is attached as a "component"
// field so log lines from the mutex, the store and the facade can be told
// apart in aggregate output.
func New(name string) Logger {
	return logrus.WithField("component", name)
}
