// Package logging provides structured logging with trace-ID propagation,
// wrapping logrus the way the rest of Cortex's ambient stack does.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Config selects format, level, and per-module overrides (spec.md §6).
type Config struct {
	Level   string
	Format  string // "standard" | "json" | "simple"
	Console bool
	Modules map[string]string
}

// Logger wraps logrus.Logger with a module name for per-module level
// overrides.
type Logger struct {
	*logrus.Logger
	module string
}

// New builds a root logger from Config.
func New(cfg Config) *Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "simple":
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l, module: "root"}
}

// Named returns a child logger for module, honoring Config.Modules level
// overrides when set.
func (l *Logger) Named(module string, cfg Config) *Logger {
	child := &Logger{Logger: l.Logger, module: module}
	if lvl, ok := cfg.Modules[module]; ok {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			clone := *l.Logger
			clone.SetLevel(parsed)
			child.Logger = &clone
		}
	}
	return child
}

// WithContext attaches the request's trace ID (if any) as a field.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("module", l.module)
	if id := TraceID(ctx); id != "" {
		entry = entry.WithField("trace_id", id)
	}
	return entry
}

// NewTraceID mints a fresh trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID extracts the trace ID from ctx, if any.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
