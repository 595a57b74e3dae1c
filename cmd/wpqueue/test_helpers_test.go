package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"wpqueue/internal/config"
	"wpqueue/internal/connectivity"
	"wpqueue/internal/daemon"
	"wpqueue/internal/ipc"
	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/testsupport"
	"wpqueue/internal/wordpress"
	"wpqueue/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeWordPress
	configPath string
	socketPath string
}

// setupCLITestEnv writes a config pointing at a fake WordPress site. No
// daemon is started; call startDaemon for that.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	fake := testsupport.NewFakeWordPress(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSite(fake.URL()))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{"WP_SITE_URL", "WP_USERNAME", "WP_APP_PASSWORD", "WPQUEUE_NTFY_TOPIC"} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		configPath: configPath,
		socketPath: cfg.Paths.Socket,
	}
}

// startDaemon runs a daemon and IPC server in-process against env's config.
func (e *cliTestEnv) startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	logger := logging.NewNop()
	store := testsupport.MustOpenStore(t, e.cfg)
	checker, monitor := connectivity.NewChecker(e.cfg, logger)
	notifier := &notifications.Recorder{}
	runner := publish.NewProcessor(wordpress.NewFromConfig(e.cfg, logger), logger)
	mgr := workflow.NewManager(e.cfg, store, runner, checker, logger, workflow.WithNotifier(notifier))

	d, err := daemon.New(e.cfg, daemon.Dependencies{
		Store:    store,
		Manager:  mgr,
		Checker:  checker,
		Monitor:  monitor,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, e.socketPath, d, logger)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
	return d
}

func (e *cliTestEnv) openStore(t *testing.T) queue.Store {
	t.Helper()
	store, err := queue.Open(context.Background(), e.cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.socketPath, e.configPath)
	return stdout, err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
