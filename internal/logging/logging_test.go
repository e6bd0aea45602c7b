package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("monitor")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("device connected", KeyDeviceID, "ABC123")

	out := buf.String()
	if !strings.Contains(out, `msg="device connected"`) {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=monitor") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "deviceId=ABC123") {
		t.Fatalf("expected deviceId field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("mirror")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormatAndSessionFields(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	WithSession(L("mirror"), "ABC123", "sess-1").Debug("launched")

	out := buf.String()
	for _, want := range []string{`"component":"mirror"`, `"deviceId":"ABC123"`, `"sessionId":"sess-1"`, `"msg":"launched"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRotatingWriterRotatesAndKeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("expected only 2 backups, found %s.3", path)
	}
}

func TestRotatingWriterWriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	w.Close()
	if _, err := w.Write([]byte("late")); err == nil {
		t.Fatal("expected write after close to fail")
	}
}
