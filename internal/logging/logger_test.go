package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log output %q: %v", buf.String(), err)
	}
	return entry
}

func newJSONLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{
		Level:  level,
		Format: FormatJSON,
		Output: buf,
	})
}

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseLevel(tc.input)
			if got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	got := ParseLevel("invalid")
	if got != LevelInfo {
		t.Errorf("ParseLevel(\"invalid\") = %v, want %v (default)", got, LevelInfo)
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.level.String(); got != tc.expected {
				t.Errorf("Level.String() = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"text", FormatText},
		{"console", FormatText},
		{"invalid", FormatJSON},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseFormat(tc.input)
			if got != tc.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	l.Info("test message")

	entry := decodeEntry(t, &buf)
	if entry["message"] != "test message" {
		t.Errorf("message = %v, want %q", entry["message"], "test message")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want %q", entry["level"], "info")
	}
	ts, ok := entry["time"].(string)
	if !ok || ts == "" {
		t.Fatalf("expected time field, got %v", entry["time"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelWarn)

	l.Debug("debug msg")
	l.Info("info msg")
	if buf.Len() > 0 {
		t.Error("debug/info should be filtered at warn level")
	}

	l.Warn("warn msg")
	if buf.Len() == 0 {
		t.Error("warn should be logged at warn level")
	}
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelError)

	l.Info("should not appear")
	if buf.Len() > 0 {
		t.Error("info should be filtered at error level")
	}

	l.SetLevel(LevelInfo)
	l.Info("should appear")
	if buf.Len() == 0 {
		t.Error("info should be logged after SetLevel(Info)")
	}
}

func TestLoggerGetLevel(t *testing.T) {
	l := New(Config{Level: LevelDebug})
	if got := l.GetLevel(); got != LevelDebug {
		t.Errorf("GetLevel() = %v, want %v", got, LevelDebug)
	}
	if !l.Enabled(LevelDebug) {
		t.Error("Enabled(debug) = false at debug level")
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	l.With(map[string]any{"tenantId": "acme"}).Info("with fields")

	entry := decodeEntry(t, &buf)
	if entry["tenantId"] != "acme" {
		t.Errorf("tenantId = %v, want %q", entry["tenantId"], "acme")
	}
}

func TestLoggerWithCorrelationAndTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	l.WithCorrelationID("corr-123").WithTraceID("trace-456").Info("with both ids")

	entry := decodeEntry(t, &buf)
	if entry[CorrelationIDField] != "corr-123" {
		t.Errorf("correlationId = %v, want %q", entry[CorrelationIDField], "corr-123")
	}
	if entry[TraceIDField] != "trace-456" {
		t.Errorf("traceId = %v, want %q", entry[TraceIDField], "trace-456")
	}
}

func TestLoggerCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		Level:     LevelDebug,
		Format:    FormatJSON,
		Output:    &buf,
		AddCaller: true,
	})

	l.Debug("with caller info")

	entry := decodeEntry(t, &buf)
	caller, _ := entry["caller"].(string)
	if !strings.Contains(caller, "logger_test.go:") {
		t.Errorf("caller = %q, expected logger_test.go:<line>", caller)
	}
}

func TestLoggerNoCallerByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelDebug)

	l.Debug("without caller info")

	entry := decodeEntry(t, &buf)
	if _, ok := entry["caller"]; ok {
		t.Errorf("expected no caller field, got %v", entry["caller"])
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: &buf,
	})

	l.WithCorrelationID("corr-123").Infof("text message", map[string]any{"records": 3})

	output := buf.String()
	if !strings.Contains(output, "INF") {
		t.Errorf("text output should contain INF, got %q", output)
	}
	if !strings.Contains(output, "text message") {
		t.Errorf("text output should contain message, got %q", output)
	}
	if !strings.Contains(output, "correlationId=corr-123") {
		t.Errorf("text output should contain correlationId, got %q", output)
	}
	if !strings.Contains(output, "records=3") {
		t.Errorf("text output should contain records field, got %q", output)
	}
}

func TestLoggerLevelMethods(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *Logger)
		level string
	}{
		{"debugf", func(l *Logger) { l.Debugf("m", map[string]any{"k": "v"}) }, "debug"},
		{"infof", func(l *Logger) { l.Infof("m", map[string]any{"k": "v"}) }, "info"},
		{"warnf", func(l *Logger) { l.Warnf("m", map[string]any{"k": "v"}) }, "warn"},
		{"errorf", func(l *Logger) { l.Errorf("m", map[string]any{"k": "v"}) }, "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc.log(newJSONLogger(&buf, LevelDebug))

			entry := decodeEntry(t, &buf)
			if entry["level"] != tc.level {
				t.Errorf("level = %v, want %q", entry["level"], tc.level)
			}
			if entry["k"] != "v" {
				t.Errorf("k = %v, want v", entry["k"])
			}
		})
	}
}

func TestLoggerErrorValueField(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	l.Errorf("write failed", map[string]any{"error": errors.New("boom")})

	entry := decodeEntry(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestDefaultLogger(t *testing.T) {
	l := DefaultLogger()
	if l.GetLevel() != LevelInfo {
		t.Errorf("DefaultLogger level = %v, want info", l.GetLevel())
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing to see")
	if l.Enabled(LevelInfo) {
		t.Error("Nop logger should not enable info")
	}
}

func TestLoggerWithDoesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)

	_ = l.With(map[string]any{"added": true}).WithCorrelationID("corr-1")
	l.Info("original")

	entry := decodeEntry(t, &buf)
	if _, ok := entry["added"]; ok {
		t.Error("With should not mutate the original logger")
	}
	if _, ok := entry[CorrelationIDField]; ok {
		t.Error("WithCorrelationID should not mutate the original logger")
	}
}

func TestLoggerChildKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelWarn)

	l.With(map[string]any{"k": 1}).Info("filtered")
	if buf.Len() != 0 {
		t.Error("child logger should inherit the parent's level")
	}
}
