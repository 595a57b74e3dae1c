// Package daemonrun assembles the daemon process: logging, storage, the
// WordPress client, connectivity monitoring and the IPC server.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"wpqueue/internal/config"
	"wpqueue/internal/connectivity"
	"wpqueue/internal/daemon"
	"wpqueue/internal/ipc"
	"wpqueue/internal/logging"
	"wpqueue/internal/logs"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/wordpress"
	"wpqueue/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the wpqueue daemon runtime loop and blocks until ctx ends or
// the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("wpqueue-%s.log", runID))
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update wpqueue.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	store, err := queue.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	checker, monitor := connectivity.NewChecker(cfg, logger)
	notifier := notifications.NewService(cfg)
	processor := publish.NewProcessor(wordpress.NewFromConfig(cfg, logger), logger)
	manager := workflow.NewManager(cfg, store, processor, checker, logger,
		workflow.WithNotifier(notifier),
		workflow.WithRenderer(workflow.NewLogRenderer(logger)),
	)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:    store,
		Manager:  manager,
		Checker:  checker,
		Monitor:  monitor,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// The lock must be held before touching the socket so a second instance
	// never removes a live daemon's socket.
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue storage access"),
			logging.String(logging.FieldImpact, "queued posts are not processed"),
		)
		return err
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.Socket, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("wpqueue daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// PIDPath returns where the daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "wpqueue.pid")
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("connectivity_mode", cfg.Connectivity.Mode),
		logging.Bool("netlink", cfg.Connectivity.Netlink),
		logging.Bool("credentials_present", cfg.HasCredentials()),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logging.Duration("completed_display_delay", cfg.CompletedDisplayDelay()),
	)
}
