// Package logging is the engine's structured logging layer. The tick
// loop, loaders and driver all log through the small Logger interface
// below so tests can swap in Noop and the backend stays replaceable;
// the default implementation sits on log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field is one structured attribute on a log line.
type Field struct {
	Key   string
	Value any
}

// String builds a string-valued field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int-valued field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Any builds a field from an arbitrary value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Tick tags a line with the simulation tick it belongs to. Most engine
// log lines carry one.
func Tick(tick int) Field { return Field{Key: "tick", Value: tick} }

// Citizen tags a line with a citizen's dense index.
func Citizen(index int32) Field { return Field{Key: "citizen", Value: int(index)} }

// Area tags a line with an output-area code.
func Area(code string) Field { return Field{Key: "area", Value: code} }

// Duration tags a line with an elapsed time.
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Err tags a line with an error message. Nil-safe.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is the logging interface the engine depends on. With returns a
// child logger that repeats the given fields on every line.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls how the slog-backed logger is built.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string
	// Format selects the handler: "json" for machine consumption,
	// anything else gets the human-readable text handler.
	Format string
	// Output defaults to stderr so simulation results on stdout stay
	// machine-readable.
	Output io.Writer
	// AddSource includes file:line on each record.
	AddSource bool
}

// New builds a Logger from the config.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     levelFrom(cfg.Level),
		AddSource: cfg.AddSource,
	}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &simLogger{sl: slog.New(h)}
}

// NewFromEnv builds a Logger from LOG_LEVEL and LOG_FORMAT, defaulting
// to text at info level.
func NewFromEnv() Logger {
	return New(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// Noop returns a logger that drops everything. The engine accepts it
// wherever a nil logger would otherwise need checking.
func Noop() Logger { return noopLogger{} }

// levelFrom maps a level name onto slog's scale, falling back to info
// for anything unrecognised.
func levelFrom(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type simLogger struct {
	sl *slog.Logger
}

func (l *simLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if !l.sl.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.sl.LogAttrs(ctx, level, msg, attrs...)
}

func (l *simLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *simLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *simLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *simLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *simLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return &simLogger{sl: l.sl.With(args...)}
}

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) With(...Field) Logger                    { return noopLogger{} }

// ---- Run identity ----
//
// One simulation run carries one run_id on every log line, so one run's
// log stream can be told apart from another's. The statistics files and
// the crash dump do not carry it.

type ctxKey int

const runIDKey ctxKey = iota

// WithRunLogger stamps a fresh run_id onto the context (unless one is
// already present) and returns a logger that repeats it on every line.
func WithRunLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id := RunIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = ContextWithRunID(ctx, id)
	}
	return ctx, base.With(String("run_id", id))
}

// ContextWithRunID stores a run_id on the context.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run_id, or "" when none was stamped.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}
