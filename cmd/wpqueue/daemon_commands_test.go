package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDaemonStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "daemon", "stop")
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonStopRefusesToSignalItself(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	// The in-process daemon reports this test binary's pid.
	_, err := env.run(t, "daemon", "stop")
	if err == nil || !strings.Contains(err.Error(), "refusing to signal current process") {
		t.Fatalf("expected self-signal refusal, got %v", err)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	stdout, _, err := runCLI(t, []string{"--help"}, "", "")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"post", "queue", "daemon", "status", "config", "logs", "test-notify"} {
		requireContains(t, stdout, name)
	}
}

func TestLogsPrintsCurrentRunLog(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No daemon log")

	path := filepath.Join(env.cfg.Paths.LogDir, "wpqueue.log")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, err = env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	if strings.Contains(out, "first") || !strings.Contains(out, "second\nthird") {
		t.Fatalf("unexpected tail output:\n%s", out)
	}
}
