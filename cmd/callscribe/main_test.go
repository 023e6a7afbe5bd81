package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
log_dir = %q
database_path = %q

[storage]
bucket = "test-bucket"
access_key_id = "test-access"
secret_access_key = "test-secret"

[speechkit]
api_key = "test-speech"

[analysis]
api_key = "test-llm"
folder_id = "test-folder"
`,
		filepath.Join(root, "staging"),
		filepath.Join(root, "logs"),
		filepath.Join(root, "queue.db"))

	path := filepath.Join(root, "callscribe.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite failed: %v", err)
	}
}

func TestAddAndQueueLifecycle(t *testing.T) {
	cfgPath := writeTestConfig(t)
	audio := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "--config", cfgPath, "add", audio, "--owner", "42")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "Enqueued task #1") || !strings.Contains(out, "audio") {
		t.Fatalf("unexpected add output %q", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "call.mp3") || !strings.Contains(out, "queued") {
		t.Fatalf("unexpected list output %q", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status failed: %v", err)
	}
	if !strings.Contains(out, "Total:      1") || !strings.Contains(out, "Queued:     1") {
		t.Fatalf("unexpected status output %q", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear failed: %v", err)
	}
	if !strings.Contains(out, "Removed 1 task(s).") {
		t.Fatalf("unexpected clear output %q", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "Queue is empty.") {
		t.Fatalf("unexpected list output %q", out)
	}
}

func TestAddDetectsArchives(t *testing.T) {
	cfgPath := writeTestConfig(t)
	bundle := filepath.Join(t.TempDir(), "batch.zip")
	if err := os.WriteFile(bundle, []byte("zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "--config", cfgPath, "add", bundle)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "archive") {
		t.Fatalf("expected archive kind, got %q", out)
	}
}

func TestQueueResetStuckEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "queue", "reset-stuck")
	if err != nil {
		t.Fatalf("reset-stuck failed: %v", err)
	}
	if !strings.Contains(out, "Failed 0 stuck task(s).") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestQueueListDateRange(t *testing.T) {
	cfgPath := writeTestConfig(t)
	audio := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, "--config", cfgPath, "add", audio); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	out, err := runCommand(t, "--config", cfgPath, "queue", "list", "--from", "2000-01-01")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "call.mp3") {
		t.Fatalf("expected task in open-ended range, got %q", out)
	}

	out, err = runCommand(t, "--config", cfgPath, "queue", "list", "--to", "2000-01-01")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "Queue is empty.") {
		t.Fatalf("expected empty past range, got %q", out)
	}

	if _, err := runCommand(t, "--config", cfgPath, "queue", "list", "--from", "January 1"); err == nil {
		t.Fatal("expected date parse error")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "test-secret") || strings.Contains(out, "test-llm") {
		t.Fatalf("expected credentials masked, got %q", out)
	}
	if !strings.Contains(out, "test-bucket") {
		t.Fatalf("expected bucket shown, got %q", out)
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestTestNotifyWithoutToken(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify failed: %v", err)
	}
	if !strings.Contains(out, "not configured") {
		t.Fatalf("unexpected output %q", out)
	}
}
