package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:      LevelDebug,
		Output:     &buf,
		JSON:       true,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}

	logger := New(cfg)
	if logger == nil {
		t.Fatal("New logger should not be nil")
	}

	t.Run("Levels", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug msg")
		if !strings.Contains(buf.String(), "debug msg") {
			t.Error("fast debug logging failed")
		}

		buf.Reset()
		logger.Info("info msg")
		if !strings.Contains(buf.String(), "info msg") {
			t.Error("fast info logging failed")
		}

		buf.Reset()
		logger.Warn("warn msg")
		if !strings.Contains(buf.String(), "warn msg") {
			t.Error("fast warn logging failed")
		}

		buf.Reset()
		logger.Error("error msg")
		if !strings.Contains(buf.String(), "error msg") {
			t.Error("fast error logging failed")
		}
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		if logger.GetLevel() != LevelError {
			t.Error("SetLevel failed")
		}

		buf.Reset()
		logger.Info("should not appear")
		if buf.Len() > 0 {
			t.Error("Logged info message when level was Error")
		}

		logger.SetLevel(LevelDebug)
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		l := logger.WithComponent("test-comp")
		l.Info("msg")
		if !strings.Contains(buf.String(), "test-comp") {
			t.Error("WithComponent missing component field")
		}
	})

	t.Run("Audit", func(t *testing.T) {
		buf.Reset()
		logger.Audit("login", "user:123", map[string]any{"ip": "1.2.3.4"})
		logStr := buf.String()
		if !strings.Contains(logStr, "AUDIT") {
			t.Error("Audit log missing AUDIT message")
		}
		if !strings.Contains(logStr, "user:123") {
			t.Error("Audit log missing resource")
		}
		if !strings.Contains(logStr, `"level":"AUDIT"`) {
			t.Errorf("Audit level not renamed: %s", logStr)
		}
	})

	t.Run("AuditIgnoresLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		defer logger.SetLevel(LevelDebug)

		buf.Reset()
		logger.Audit("session.end", "10.0.0.5", map[string]any{"reason": "expired"})
		if !strings.Contains(buf.String(), "session.end") {
			t.Error("Audit suppressed by error level")
		}
	})

}

func TestDefaultLogger(t *testing.T) {
	// Just cover the default logger functions to ensure no panics
	// We can't easily capture stdout/stderr without piping,
	// so we'll just execute them for coverage.

	// Ensure default is initialized
	l := Default()
	if l == nil {
		t.Fatal("Default logger is nil")
	}

	// Create a buffer logger and set it as default to capture output
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	newDefault := New(cfg)
	SetDefault(newDefault)

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
	Audit("test", "res", nil)

	WithComponent("comp").Info("comp msg")

	if buf.Len() == 0 {
		t.Error("Default logger captured no output")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf})

	logger.WithComponent("Monitor").Warn("spoofing detected", "ip", "10.0.0.5", "note", "mac changed")

	line := buf.String()
	if !strings.Contains(line, "[warn] monitor: spoofing detected") {
		t.Errorf("unexpected header in %q", line)
	}
	if !strings.Contains(line, "ip=10.0.0.5") {
		t.Errorf("missing attribute in %q", line)
	}
	if !strings.Contains(line, `note="mac changed"`) {
		t.Errorf("values with spaces should be quoted: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should be promoted, not repeated: %q", line)
	}
}

func TestConsoleHandlerAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.WithComponent("session").Audit("session.create", "10.0.0.5", map[string]any{
		"user": "alice",
		"mac":  "aa:bb:cc:dd:ee:01",
	})

	line := buf.String()
	if !strings.Contains(line, "netguard[") {
		t.Errorf("missing process tag in %q", line)
	}
	if !strings.Contains(line, "[audit] session: AUDIT action=session.create resource=10.0.0.5") {
		t.Errorf("unexpected audit header in %q", line)
	}
	if strings.Index(line, "mac=") > strings.Index(line, "user=") {
		t.Errorf("detail keys should be sorted: %q", line)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf, JSON: true})
	logger.WithComponent("session").Info("session created", "ip", "10.0.0.5")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "session" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["ip"] != "10.0.0.5" {
		t.Errorf("ip = %v", entry["ip"])
	}
}
