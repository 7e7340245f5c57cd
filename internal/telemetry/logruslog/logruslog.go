// Package logruslog adapts sirupsen/logrus to the telemetry.Logger contract.
// Selected via logging.backend: "logrus" for operators standardized on
// logrus elsewhere in their fleet.
package logruslog

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/a-agmon/prism-cache/internal/telemetry"
)

// Logger wraps a *logrus.Entry.
type Logger struct{ e *logrus.Entry }

var _ telemetry.Logger = Logger{}

// New builds a Logger at the given level.
func New(level string) Logger {
	l := logrus.New()
	l.SetLevel(parseLevel(level))
	return Logger{e: logrus.NewEntry(l)}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l Logger) Trace(msg string, f telemetry.Fields) { l.e.WithFields(logrus.Fields(f)).Trace(msg) }
func (l Logger) Debug(msg string, f telemetry.Fields) { l.e.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f telemetry.Fields)  { l.e.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f telemetry.Fields)  { l.e.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f telemetry.Fields) { l.e.WithFields(logrus.Fields(f)).Error(msg) }

func (l Logger) With(f telemetry.Fields) telemetry.Logger {
	return Logger{e: l.e.WithFields(logrus.Fields(f))}
}
