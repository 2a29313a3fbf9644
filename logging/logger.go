package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a user facing level decoupled from slog.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LogLevelDebug || l > LogLevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ParseLevel converts a case-insensitive level name into a LogLevel. An empty
// name means info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the interface every package logs through. Messages are dotted
// event names ("loop.step.start") followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// With returns a Logger that prepends attrs to every entry. A nil l yields a
// NoOpLogger.
func With(l Logger, attrs ...any) Logger {
	switch l.(type) {
	case nil:
		return NoOpLogger{}
	case NoOpLogger:
		return l
	}
	if len(attrs) == 0 {
		return l
	}
	if s, ok := l.(*scoped); ok {
		return &scoped{next: s.next, attrs: append(append([]any{}, s.attrs...), attrs...)}
	}
	return &scoped{next: l, attrs: attrs}
}

type scoped struct {
	next  Logger
	attrs []any
}

func (s *scoped) merge(args []any) []any {
	out := make([]any, 0, len(s.attrs)+len(args))
	return append(append(out, s.attrs...), args...)
}

func (s *scoped) Debug(msg string, args ...any) { s.next.Debug(msg, s.merge(args)...) }
func (s *scoped) Info(msg string, args ...any)  { s.next.Info(msg, s.merge(args)...) }
func (s *scoped) Warn(msg string, args ...any)  { s.next.Warn(msg, s.merge(args)...) }
func (s *scoped) Error(msg string, args ...any) { s.next.Error(msg, s.merge(args)...) }

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	// Component is attached to every entry as "component".
	Component string
}

// LoopLogger is a slog-backed Logger carrying a fixed set of attributes.
// WithContext and WithRun return copies.
type LoopLogger struct {
	handler slog.Handler
	level   LogLevel
	attrs   []slog.Attr
}

// NewLogger builds a LoopLogger. A nil cfg logs text at info level to stderr.
func NewLogger(cfg *LoggerConfig) *LoopLogger {
	if cfg == nil {
		cfg = &LoggerConfig{Level: LogLevelInfo, Format: "text"}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}
	var h slog.Handler = slog.NewTextHandler(out, hopts)
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(out, hopts)
	}

	l := &LoopLogger{handler: h, level: cfg.Level}
	if cfg.Component != "" {
		l.attrs = append(l.attrs, slog.String("component", cfg.Component))
	}
	return l
}

// NewSlogLogger is a shorthand for NewLogger writing to stderr.
func NewSlogLogger(level LogLevel, format string, addSource bool) *LoopLogger {
	return NewLogger(&LoggerConfig{Level: level, Format: format, AddSource: addSource})
}

func (l *LoopLogger) with(attrs ...slog.Attr) *LoopLogger {
	nl := *l
	nl.attrs = append(append(make([]slog.Attr, 0, len(l.attrs)+len(attrs)), l.attrs...), attrs...)
	return &nl
}

// WithContext attaches key=value to every entry.
func (l *LoopLogger) WithContext(key string, value any) *LoopLogger {
	return l.with(slog.Any(key, value))
}

// WithRun attaches run and thread identifiers; empty values are skipped.
func (l *LoopLogger) WithRun(runID, threadID string) *LoopLogger {
	var attrs []slog.Attr
	if runID != "" {
		attrs = append(attrs, slog.String("run_id", runID))
	}
	if threadID != "" {
		attrs = append(attrs, slog.String("thread_id", threadID))
	}
	return l.with(attrs...)
}

func (l *LoopLogger) log(level slog.Level, msg string, args ...any) {
	if level < l.level.slog() {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.attrs...)
	r.Add(args...)
	_ = l.handler.Handle(context.Background(), r)
}

func (l *LoopLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *LoopLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *LoopLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *LoopLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }
