package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a leveled, structured logger. Arguments after the message are
// alternating key/value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a Logger writing to stdout. Format is "json" or
// "console"; level is one of debug, info, warn, error.
func NewLogger(level, format string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// With returns a child logger that adds the given key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
