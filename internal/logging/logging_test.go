package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandler_ForwardsToSubscribers(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var got []string
	h.Subscribe(func(level, message string) {
		got = append(got, level+" "+message)
	})

	logger := slog.New(h).With("component", "capture")
	logger.Debug("hidden")
	logger.Info("camera active", "width", 1280)
	logger.WithGroup("upload").Warn("slow", "ms", 900)

	want := []string{
		"INFO camera active component=capture width=1280",
		"WARN slow component=capture upload.ms=900",
	}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !strings.Contains(buf.String(), "camera active") {
		t.Errorf("inner handler did not receive record: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "passcam.log")
	h, closer, err := Setup(path, "debug")
	if err != nil {
		t.Fatal(err)
	}
	var lines int
	h.Subscribe(func(string, string) { lines++ })

	Logger.Debug("hello from setup")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from setup") {
		t.Errorf("log file = %s", data)
	}
	if lines != 1 {
		t.Errorf("subscriber saw %d lines, want 1", lines)
	}
}
