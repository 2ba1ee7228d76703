package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The process-wide logger. Subsystems attach a module field via WithModule
// instead of threading logger handles through constructors, and the default
// is a no-op so tests and early bootstrap code can log without setup.
var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init replaces the global logger with a production JSON logger at the
// requested level. Unrecognised level strings fall back to info.
func Init(level string) error {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build(zap.Fields(zap.String("service", "pawhaven")))
	if err != nil {
		return err
	}

	mu.Lock()
	global = built
	mu.Unlock()
	return nil
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return global
}

// WithModule returns a child logger tagged with the subsystem name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Sync flushes buffered entries, typically deferred from main.
func Sync() error {
	return Logger().Sync()
}
