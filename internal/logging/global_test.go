package logging

import (
	"bytes"
	"testing"
)

func withGlobal(t *testing.T, l *Logger) {
	t.Helper()
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })
	SetGlobal(l)
}

func TestSetGlobalAndGlobal(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, LevelInfo)
	withGlobal(t, l)

	if Global() != l {
		t.Error("Global() should return the logger set by SetGlobal")
	}
}

func TestConfigure(t *testing.T) {
	withGlobal(t, Global())

	l := Configure("debug", "json")
	if l.GetLevel() != LevelDebug {
		t.Errorf("Configure level = %v, want debug", l.GetLevel())
	}
	if !l.addCaller {
		t.Error("Configure at debug level should enable caller info")
	}
	if Global() != l {
		t.Error("Configure should set global logger")
	}

	l = Configure("info", "text")
	if l.addCaller {
		t.Error("Configure at info level should not enable caller info")
	}
}

func TestGlobalFunctions(t *testing.T) {
	tests := []struct {
		name  string
		log   func()
		level string
	}{
		{"debug", func() { Debug("m") }, "debug"},
		{"debugf", func() { Debugf("m", map[string]any{"k": 1}) }, "debug"},
		{"info", func() { Info("m") }, "info"},
		{"infof", func() { Infof("m", map[string]any{"k": 1}) }, "info"},
		{"warn", func() { Warn("m") }, "warn"},
		{"warnf", func() { Warnf("m", map[string]any{"k": 1}) }, "warn"},
		{"error", func() { Error("m") }, "error"},
		{"errorf", func() { Errorf("m", map[string]any{"k": 1}) }, "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			withGlobal(t, newJSONLogger(&buf, LevelDebug))

			tc.log()

			entry := decodeEntry(t, &buf)
			if entry["level"] != tc.level {
				t.Errorf("level = %v, want %q", entry["level"], tc.level)
			}
		})
	}
}

func TestGlobalLoggerInitialized(t *testing.T) {
	if Global() == nil {
		t.Fatal("global logger should be initialized at package load")
	}
}
