package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.Debug("hidden message")
	log.Info("visible message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Error("debug line logged at info level")
	}
	if !strings.Contains(out, "visible message") {
		t.Error("info line missing")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.SetLevel(slog.LevelDebug)
	if log.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v after SetLevel", log.Level())
	}

	log.Debug("now visible", "key", "value")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug line missing after lowering the level")
	}
}
