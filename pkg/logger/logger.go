// Package logger holds the process-wide zap logger used by providers that
// are not given one explicitly.
package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

// zapLevel maps l onto zap. LevelNone maps above Fatal so nothing passes.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel + 1
	}
}

var (
	mu           sync.RWMutex
	defaultLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	defaultLog   = build(os.Stderr, defaultLevel)
)

func build(w io.Writer, level zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
	return zap.New(core).Named("gofhir-model")
}

// New creates a console logger writing to w at level.
func New(w io.Writer, level Level) *zap.Logger {
	return build(w, zap.NewAtomicLevelAt(level.zapLevel()))
}

// Default returns the default logger.
func Default() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLog
}

// SetDefault sets the default logger. Providers created earlier keep the
// logger they were built with.
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLog = l
}

// SetLevel sets the level of the built-in default logger.
func SetLevel(level Level) {
	defaultLevel.SetLevel(level.zapLevel())
}

// Disable disables all logging on the built-in default logger.
func Disable() {
	SetLevel(LevelNone)
}
