// Package logger builds zap loggers for herdcore binaries and adapts them to
// the key/value Logger interface the core service expects.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger. "development" selects the console preset; any
// other mode yields JSON output with ISO8601 timestamps.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// Must panics when the logger cannot be created.
func Must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return logger
}

// Named returns a child logger for a component.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}

// Sugared writes message plus alternating key/value pairs through a zap
// SugaredLogger.
type Sugared struct {
	s *zap.SugaredLogger
}

// NewSugared wraps base, which may be nil.
func NewSugared(base *zap.Logger) *Sugared {
	if base == nil {
		base = zap.NewNop()
	}
	return &Sugared{s: base.Sugar()}
}

func (l *Sugared) Debug(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l *Sugared) Info(msg string, keysAndValues ...any)  { l.s.Infow(msg, keysAndValues...) }
func (l *Sugared) Warn(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l *Sugared) Error(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

// With returns a logger carrying the given fields on every entry.
func (l *Sugared) With(keysAndValues ...any) *Sugared {
	return &Sugared{s: l.s.With(keysAndValues...)}
}
