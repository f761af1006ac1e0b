package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/testsupport"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	return testsupport.WriteConfig(t, testsupport.NewConfig(t))
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIConfigInit(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "curator", "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing config")
	}
}

func TestCLIConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
	if !strings.Contains(out, configPath) {
		t.Fatalf("validate output should name the config path: %q", out)
	}
}

func TestCLIPointsWithEmptyLedger(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "points")
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if !strings.Contains(out, "ledger is empty") {
		t.Fatalf("unexpected points output: %q", out)
	}
}

func TestCLIHistoryWithNoRuns(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs recorded yet") {
		t.Fatalf("unexpected history output: %q", out)
	}
}

func TestCLICacheStats(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if !strings.Contains(out, "Entries:  0") {
		t.Fatalf("unexpected cache stats output: %q", out)
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "No ntfy topic configured") {
		t.Fatalf("unexpected test-notify output: %q", out)
	}
}
