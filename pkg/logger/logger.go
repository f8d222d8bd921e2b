// Package logger provides the logging facility for cardtrader, built on top
// of Uber's zap library. It exposes a small formatted-logging surface so the
// rest of the codebase does not depend on zap directly.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is "json" or "console". Empty means console.
	Format string
}

// Logger wraps a zap.SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger from cfg. Construction never fails: an invalid level
// falls back to info and an unbuildable config falls back to a no-op logger.
func New(cfg LoggingConfig) *Logger {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format != "json" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zcfg.DisableStacktrace = true

	zl, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return NewNop()
	}
	return &Logger{sugar: zl.Sugar()}
}

// NewNop returns a logger that discards everything. Useful as a default for
// library consumers that do not care about logs.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) { l.sugar.Infof(format, args...) }

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.sugar.Warnf(format, args...) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered log entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }
