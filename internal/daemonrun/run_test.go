package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wpqueue/internal/ipc"
	"wpqueue/internal/testsupport"
)

func TestRunServesIPCUntilCanceled(t *testing.T) {
	fake := testsupport.NewFakeWordPress(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithSite(fake.URL()),
		testsupport.WithConnectivityMode("offline"),
	)
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	var client *ipc.Client
	deadline := time.Now().Add(5 * time.Second)
	for client == nil {
		c, err := ipc.Dial(cfg.Paths.Socket)
		if err == nil {
			client = c
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon socket never appeared: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := client.Submit(ipc.SubmitRequest{
		Text:     "queued through the socket",
		SiteURL:  fake.URL(),
		Username: "editor",
		Password: "app-pass",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Online {
		t.Fatal("expected offline submit")
	}
	client.Close()

	if _, err := os.Stat(PIDPath(cfg)); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	if _, err := os.Stat(cfg.Paths.Socket); !os.IsNotExist(err) {
		t.Fatalf("expected socket removal, stat err=%v", err)
	}
	if _, err := os.Stat(PIDPath(cfg)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removal, stat err=%v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.LogDir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	var found bool
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "wpqueue-") && filepath.Ext(entry.Name()) == ".log" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a run log file")
	}
}
