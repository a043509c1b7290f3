// Package obslog is the structured-logging sink every component in the
// indexer writes through. It wraps logrus the way core/amm.go and
// core/liquidity_pools.go in the wider Synnergy codebase hold a
// *logrus.Logger on their manager structs and log with WithFields — one
// logger, passed in at construction, never a package-global default used
// from deep in business logic.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger for the process. level is one of logrus's
// parseable level strings ("debug", "info", "warn", "error"); an empty or
// unrecognized value falls back to "info".
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return l
}

// ForComponent returns a scoped entry for a named component (e.g.
// "subscription", "backfill", "engine"), so every line it writes can be
// filtered by component without the caller re-stating the field.
func ForComponent(l *logrus.Logger, component string) *logrus.Entry {
	return l.WithField("component", component)
}

// Activity logs a routine, expected event at info level. It is the
// log_activity primitive spec'd as an external collaborator: a named
// component, a short message, and optional structured detail. A nil entry
// is a silent no-op, so components can be unit-tested without a logger.
func Activity(e *logrus.Entry, message string, fields logrus.Fields) {
	if e == nil {
		return
	}
	if fields == nil {
		e.Info(message)
		return
	}
	e.WithFields(fields).Info(message)
}

// Error logs an unexpected but handled failure. This is the log_error
// primitive; it never panics and never exits the process — callers decide
// recovery.
func Error(e *logrus.Entry, message string, err error, fields logrus.Fields) {
	if e == nil {
		return
	}
	entry := e.WithError(err)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

// Stats logs an aggregate counter snapshot, e.g. catch-up (processed,
// succeeded) ratios. This is the log_stats primitive.
func Stats(e *logrus.Entry, message string, fields logrus.Fields) {
	if e == nil {
		return
	}
	e.WithFields(fields).Info(message)
}
