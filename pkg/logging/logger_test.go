package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		emit  func(zerolog.Logger)
	}{
		{"debug_level", LevelDebug, func(l zerolog.Logger) { l.Debug().Msg("poll pass") }},
		{"info_level", LevelInfo, func(l zerolog.Logger) { l.Info().Msg("poll pass") }},
		{"warn_level", LevelWarn, func(l zerolog.Logger) { l.Warn().Msg("poll pass") }},
		{"error_level", LevelError, func(l zerolog.Logger) { l.Error().Msg("poll pass") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger)

			if !strings.Contains(buf.String(), "poll pass") {
				t.Errorf("Expected output to contain message, got %q", buf.String())
			}
		})
	}
}

func TestSetup_TimeFieldsKeepFraction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf})

	wm := time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC)
	logger.Info().Time("watermark", wm).Msg("Poll complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got := entry["watermark"]; got != "2024-01-02T03:04:05.678Z" {
		t.Errorf("watermark field = %v, want millisecond digits", got)
	}
}

func TestSetup_NilOutputDefaultsToStderr(t *testing.T) {
	// must not panic
	logger := Setup(Config{Level: LevelError})
	logger.Debug().Msg("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{" debug ", zerolog.DebugLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("runner")
	logger.Info().Msg("started")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["component"] != "runner" {
		t.Errorf("component = %v, want runner", line["component"])
	}
	if line["message"] != "started" {
		t.Errorf("message = %v, want started", line["message"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("Expected a timestamp field")
	}
}

func TestForConnector(t *testing.T) {
	buf := &bytes.Buffer{}
	base := Setup(Config{Level: LevelInfo, Output: buf})

	frontLogger := ForConnector(base, "frontapp", "inb_1")
	frontLogger.Info().Msg("x")
	vercelLogger := ForConnector(base, "vercel", "")
	vercelLogger.Info().Msg("y")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"connector":"frontapp"`) || !strings.Contains(lines[0], `"instance":"inb_1"`) {
		t.Errorf("first line = %s", lines[0])
	}
	if strings.Contains(lines[1], `"instance"`) {
		t.Errorf("empty instance must be omitted: %s", lines[1])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("messages below warn should be filtered: %q", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("warn and error should be included: %q", output)
	}
}
