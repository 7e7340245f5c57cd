// Package zaplog adapts go.uber.org/zap to the telemetry.Logger contract.
package zaplog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a-agmon/prism-cache/internal/telemetry"
)

// Logger wraps a *zap.Logger.
type Logger struct{ l *zap.Logger }

var _ telemetry.Logger = Logger{}

// New builds a Logger at the given level ("trace" is treated as debug plus
// a prism_trace field, since zap has no trace level).
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	if lvl := strings.ToLower(level); lvl == "debug" || lvl == "trace" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	}
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{l: l}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l Logger) Trace(msg string, f telemetry.Fields) {
	f = withTrace(f)
	l.l.Debug(msg, zf(f)...)
}
func (l Logger) Debug(msg string, f telemetry.Fields) { l.l.Debug(msg, zf(f)...) }
func (l Logger) Info(msg string, f telemetry.Fields)  { l.l.Info(msg, zf(f)...) }
func (l Logger) Warn(msg string, f telemetry.Fields)  { l.l.Warn(msg, zf(f)...) }
func (l Logger) Error(msg string, f telemetry.Fields) { l.l.Error(msg, zf(f)...) }

func (l Logger) With(f telemetry.Fields) telemetry.Logger {
	return Logger{l: l.l.With(zf(f)...)}
}

// Sync flushes any buffered log entries. Call before process exit.
func (l Logger) Sync() error { return l.l.Sync() }

func withTrace(f telemetry.Fields) telemetry.Fields {
	out := make(telemetry.Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out["prism_trace"] = true
	return out
}

func zf(f telemetry.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
