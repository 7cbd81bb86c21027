package log

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/mmcdole/marquee/internal/domain"
)

// SlogReporter sends domain.LogEntry values to a slog.Logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewReporter wraps logger. A nil logger falls back to slog.Default().
func NewReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{logger: logger}
}

// Log never panics; a failing handler is swallowed.
func (r *SlogReporter) Log(entry domain.LogEntry) {
	defer func() { _ = recover() }()

	attrs := make([]slog.Attr, 0, len(entry.Context)+1)
	for k, v := range entry.Context {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs = append(attrs, slog.Any(k, v))
	}

	stack := entry.Stack
	if stack == "" && entry.Type == domain.SeverityCritical {
		stack = string(debug.Stack())
	}
	if stack != "" {
		attrs = append(attrs, slog.String("stack", stack))
	}

	r.logger.LogAttrs(context.Background(), levelFor(entry.Type), entry.Message, attrs...)
}

func levelFor(s domain.Severity) slog.Level {
	switch s {
	case domain.SeverityWarn:
		return slog.LevelWarn
	case domain.SeverityError:
		return slog.LevelError
	case domain.SeverityCritical:
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}
