package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/calverley/cecd/internal/infrastructure/config"
)

// bufferLogger builds a Logger writing JSON into buf so tests can
// inspect the emitted records.
func bufferLogger(buf *bytes.Buffer, level string) *Logger {
	h := newHandler(config.LoggingConfig{Level: level, Format: "json"}, buf)
	return &Logger{Logger: slog.New(h)}
}

func record(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (line %q)", err, buf.String())
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	if destination("stderr") != os.Stderr {
		t.Error("destination(stderr) != os.Stderr")
	}
	if destination("STDERR") != os.Stderr {
		t.Error("destination is not case-insensitive")
	}
	if destination("stdout") != os.Stdout {
		t.Error("destination(stdout) != os.Stdout")
	}
	if destination("") != os.Stdout {
		t.Error("destination(\"\") should fall back to stdout")
	}
}

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer

	if _, ok := newHandler(config.LoggingConfig{Format: "text"}, &buf).(*slog.TextHandler); !ok {
		t.Error("format text did not produce a TextHandler")
	}
	if _, ok := newHandler(config.LoggingConfig{Format: "json"}, &buf).(*slog.JSONHandler); !ok {
		t.Error("format json did not produce a JSONHandler")
	}
	if _, ok := newHandler(config.LoggingConfig{}, &buf).(*slog.JSONHandler); !ok {
		t.Error("empty format should default to JSON")
	}
}

func TestLevelFloor(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf, "warn")

	log.Info("below the floor")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted at warn level: %q", buf.String())
	}

	log.Warn("at the floor")
	if buf.Len() == 0 {
		t.Fatal("warn record suppressed at warn level")
	}
}

func TestRecordFields(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf, "info")

	log.Info("adapter ready", "device", "/dev/ttyACM0")

	entry := record(t, &buf)
	if entry["msg"] != "adapter ready" {
		t.Errorf("msg = %v, want %q", entry["msg"], "adapter ready")
	}
	if entry["device"] != "/dev/ttyACM0" {
		t.Errorf("device = %v, want %q", entry["device"], "/dev/ttyACM0")
	}
}

func TestWithCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf, "info").With("component", "bus")

	log.Info("started")

	entry := record(t, &buf)
	if entry["component"] != "bus" {
		t.Errorf("component = %v, want %q", entry["component"], "bus")
	}
}

func TestNewAndDefaultConstruct(t *testing.T) {
	if New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, "1.0.0") == nil {
		t.Fatal("New returned nil")
	}
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
}
