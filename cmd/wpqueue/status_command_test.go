package main

import (
	"encoding/json"
	"testing"

	"wpqueue/internal/api"
	"wpqueue/internal/testsupport"
)

func TestStatusWithoutDaemonReadsStore(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustPut(t, env.openStore(t), testsupport.NewEntry("20261018-aaaa", env.fake.URL(), "pending", 0))

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Not running")
	requireContains(t, out, "Queued")
}

func TestStatusJSONThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startDaemon(t)

	out, err := env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !status.Running || !status.Workflow.Online {
		t.Fatalf("expected running online daemon, got %+v", status)
	}
	if status.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend, got %q", status.Backend)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
