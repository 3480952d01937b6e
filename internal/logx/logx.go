// Package logx is the event logging facility the core emits to (spec.md
// §1: "out of scope... described only by the interfaces the core
// consumes"). It wraps logrus, preserving the teacher's I:/W:/E: prefix
// idiom from node.go (e.g. `log.Printf("W: [%s] peer %s wasn't ready...")`)
// as the message text while gaining logrus's structured fields and level
// filtering for the verbose flag.
package logx

import (
	"github.com/sirupsen/logrus"
)

// Logger is the narrow surface the core components log through.
type Logger struct {
	entry *logrus.Entry
}

// New builds a logger. verbose raises the level to Debug; otherwise only
// Info and above are emitted, matching the teacher's SetVerbose() toggle.
func New(identity string, verbose bool) *Logger {
	base := logrus.New()
	base.SetLevel(logrus.InfoLevel)
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	}
	return &Logger{entry: base.WithField("node", identity)}
}

// Info logs an "I:" informational event.
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof("I: "+format, args...)
}

// Warn logs a "W:" warning event — the level the dispatcher uses for
// sender-IP-mismatch and invalid-token drops (wrong-recipient and
// unknown-TYPE drops go to Debug).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf("W: "+format, args...)
}

// Error logs an "E:" event for surfaced failures (retry exhaustion, file
// I/O errors).
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf("E: "+format, args...)
}

// Debug logs verbose-only tracing, e.g. dropped wrong-recipient frames.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf("D: "+format, args...)
}

// With attaches structured fields (peer id, message type, file id, ...)
// to a derived logger.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
