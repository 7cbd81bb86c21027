package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"INFO":     slog.LevelInfo,
		"warning":  slog.LevelWarn,
		"Error":    slog.LevelError,
		"critical": LevelCritical,
		"bogus":    slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestSetupLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "marquee.log")

	logger, err := SetupLogger(&Config{File: path, Level: "debug"})
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestReporter_Levels(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(NewLogger(&buf, "debug"))

	r.Log(domain.LogEntry{Message: "info", Type: domain.SeverityInfo})
	r.Log(domain.LogEntry{Message: "warn", Type: domain.SeverityWarn, Context: map[string]any{"error": errors.New("boom")}})
	r.Log(domain.LogEntry{Message: "crit", Type: domain.SeverityCritical})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "CRITICAL", lines[2]["level"])
	assert.NotEmpty(t, lines[2]["stack"], "critical entries carry a stack")
}

func TestReporter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(NewLogger(&buf, "error"))

	r.Log(domain.LogEntry{Message: "quiet", Type: domain.SeverityWarn})
	r.Log(domain.LogEntry{Message: "loud", Type: domain.SeverityCritical, Stack: "given"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "loud", lines[0]["msg"])
	assert.Equal(t, "given", lines[0]["stack"])
}

type explodingHandler struct{}

func (explodingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (explodingHandler) Handle(context.Context, slog.Record) error { panic("sink down") }
func (h explodingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h explodingHandler) WithGroup(string) slog.Handler           { return h }

func TestReporter_NeverPanics(t *testing.T) {
	r := NewReporter(slog.New(explodingHandler{}))
	assert.NotPanics(t, func() {
		r.Log(domain.LogEntry{Message: "x", Type: domain.SeverityError})
	})
}
