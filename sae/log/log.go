// Package log is a thin package-level wrapper around zap.
//
// The default logger discards everything; binaries install a real one with
// SetLogger(New(level)). Libraries take a *zap.Logger explicitly and fall back
// to L().
package log

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// New builds a console logger writing to stderr at the given level
// ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// SetLogger replaces the package logger. A nil logger installs a no-op one.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

func L() *zap.Logger {
	return global.Load()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

// Security event names attached with zap.String("event", ...).
const (
	EventAuthFailure       = "auth_failure"
	EventTokenMismatch     = "token_mismatch"
	EventReplayRejected    = "replay_rejected"
	EventTamperDetected    = "tamper_detected"
	EventSessionTerminated = "session_terminated"
)

// Event tags a log entry as a security event.
func Event(name string) zap.Field {
	return zap.String("event", name)
}
