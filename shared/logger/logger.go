// Package logger provides the structured logging surface used across the
// daemon. It is a thin wrapper around logrus, matching the field-map style
// (logger.Ctx{"key": value}) used throughout the client and daemon code.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of structured fields attached to a log line.
type Ctx map[string]any

var (
	mu  sync.Mutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetOutput redirects all subsequent log lines to w (used by --log PATH).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// SetDebug toggles debug-level verbosity.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		std.SetLevel(logrus.DebugLevel)
	} else {
		std.SetLevel(logrus.InfoLevel)
	}
}

func entry(ctx []Ctx) *logrus.Entry {
	fields := logrus.Fields{}
	for _, c := range ctx {
		for k, v := range c {
			fields[k] = v
		}
	}

	mu.Lock()
	l := std
	mu.Unlock()
	return l.WithFields(fields)
}

// Debug logs at debug level.
func Debug(msg string, ctx ...Ctx) { entry(ctx).Debug(msg) }

// Info logs at info level.
func Info(msg string, ctx ...Ctx) { entry(ctx).Info(msg) }

// Warn logs at warn level.
func Warn(msg string, ctx ...Ctx) { entry(ctx).Warn(msg) }

// Error logs at error level.
func Error(msg string, ctx ...Ctx) { entry(ctx).Error(msg) }

// Fatal logs at fatal level and terminates the process (InternalInvariant
// errors, per spec §7, are expected to do this).
func Fatal(msg string, ctx ...Ctx) { entry(ctx).Fatal(msg) }
