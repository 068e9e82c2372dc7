package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// decodeLines parses every JSON log line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", raw, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected JSON output by default")
	}
	if cfg.Fields != nil {
		t.Errorf("Expected no default fields, got %v", cfg.Fields)
	}
}

func TestComponentLoggers(t *testing.T) {
	tests := []struct {
		component string
		want      string
	}{
		{ComponentProxy, "edge-proxy"},
		{ComponentOrigin, "origin"},
		{ComponentCache, "cache"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{
				Level:  LevelInfo,
				Output: buf,
				Fields: map[string]string{"version": "2.0.0", "environment": "production"},
			})

			logger := NewLogger(tt.component)
			logger.Info().Str("route", "cached").Msg("Request handled")

			lines := decodeLines(t, buf)
			if len(lines) != 1 {
				t.Fatalf("Expected 1 line, got %d", len(lines))
			}
			line := lines[0]
			if line["component"] != tt.want {
				t.Errorf("component = %v, want %s", line["component"], tt.want)
			}
			if line["version"] != "2.0.0" || line["environment"] != "production" {
				t.Errorf("process fields missing: %v", line)
			}
			if line["route"] != "cached" {
				t.Errorf("event field missing: %v", line)
			}
		})
	}
}

// Each row mirrors a log event at the level the edge proxy emits it.
func TestLevelFiltering(t *testing.T) {
	events := []struct {
		msg   string
		level zerolog.Level
	}{
		{"Cache hit", zerolog.DebugLevel},
		{"Starting edge proxy", zerolog.InfoLevel},
		{"Cache get error", zerolog.WarnLevel},
		{"Origin request failed", zerolog.ErrorLevel},
	}

	tests := []struct {
		level LogLevel
		want  []string
	}{
		{LevelDebug, []string{"Cache hit", "Starting edge proxy", "Cache get error", "Origin request failed"}},
		{LevelInfo, []string{"Starting edge proxy", "Cache get error", "Origin request failed"}},
		{LevelWarn, []string{"Cache get error", "Origin request failed"}},
		{LevelError, []string{"Origin request failed"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})
			logger := NewLogger(ComponentProxy)

			for _, ev := range events {
				logger.WithLevel(ev.level).Msg(ev.msg)
			}

			var got []string
			for _, line := range decodeLines(t, buf) {
				got = append(got, line["message"].(string))
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("level %s logged %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestTimestampMilliseconds(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger(ComponentCache)
	logger.Info().Msg("Connected to Redis")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	raw, ok := lines[0]["time"].(string)
	if !ok {
		t.Fatalf("time field missing: %v", lines[0])
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z07:00", raw); err != nil {
		t.Errorf("time %q not in millisecond layout: %v", raw, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{" debug ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"trace", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetupPretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: buf,
	})

	logger := NewLogger(ComponentOrigin)
	logger.Info().Msg("Forwarding request to origin")

	output := buf.String()
	if !strings.Contains(output, "Forwarding request to origin") {
		t.Errorf("Expected output to contain message, got %q", output)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected console output, got JSON %q", output)
	}
}

func TestSetupNilOutput(t *testing.T) {
	// Falls back to stderr without panicking
	logger := Setup(Config{Level: LevelError})
	logger.Debug().Msg("filtered")
}
