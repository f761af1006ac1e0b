package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	handler := newConsoleHandler(&buf, levelVar)
	logger := NewComponentLogger(slog.New(handler), "ledger")

	logger.Info("applied run", Int("resolved", 3), String("policy", "decay"))

	line := buf.String()
	if !strings.Contains(line, "INFO ledger: applied run") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "resolved=3") || !strings.Contains(line, "policy=decay") {
		t.Fatalf("attrs missing from console line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be a prefix, not an attr: %q", line)
	}
}

func TestConsoleHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&buf, new(slog.LevelVar))
	slog.New(handler).Info("resolved", String("title", "The Dark Knight"))

	if !strings.Contains(buf.String(), `title="The Dark Knight"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&buf, new(slog.LevelVar))
	logger := slog.New(handler).WithGroup("sync")
	logger.Info("done", Int("added", 2))

	if !strings.Contains(buf.String(), "sync.added=2") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled at any level")
	}
}
