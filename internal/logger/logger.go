package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a thin wrapper over zap's sugared logger so callers only deal
// with message + key/value pairs.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a logger for the given mode ("prod"/"production" selects the
// JSON production config, anything else the development config).
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{s: zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.s.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	l.s.Fatalw(msg, keysAndValues...)
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{s: l.s.With(keysAndValues...)}
}
