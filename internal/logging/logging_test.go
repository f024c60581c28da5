package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "recommender-chat.log")

	var stderr bytes.Buffer
	logger, closer, err := Init(Config{Level: "info", Format: "json", File: logPath}, &stderr)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closer.Close()

	logger.Info("hello", slog.String("module", "test"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file = %s, want JSON record", string(data))
	}
	if !strings.Contains(stderr.String(), "hello") {
		t.Errorf("stderr = %q, want the record too", stderr.String())
	}
}

func TestInitStderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := Init(Config{Level: "warn"}, &stderr)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closer.Close()

	logger.Info("quiet")
	logger.Warn("loud")

	out := stderr.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "loud") {
		t.Errorf("stderr = %q, want text warn record", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
