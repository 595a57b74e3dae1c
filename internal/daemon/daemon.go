package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"wpqueue/internal/config"
	"wpqueue/internal/connectivity"
	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/preflight"
	"wpqueue/internal/queue"
	"wpqueue/internal/workflow"
)

// Dependencies are the collaborators a Daemon coordinates. Monitor may be
// nil when connectivity is fixed by configuration.
type Dependencies struct {
	Store    queue.Store
	Manager  *workflow.Manager
	Checker  connectivity.Checker
	Monitor  *connectivity.Monitor
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    queue.Store
	manager  *workflow.Manager
	checker  connectivity.Checker
	monitor  *connectivity.Monitor
	notifier notifications.Service
	http     *httpServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Online       bool
	Workflow     workflow.StatusSummary
	Backend      string
	QueueDBPath  string
	LockFilePath string
	Socket       string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Manager == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	checker := deps.Checker
	if checker == nil {
		checker = connectivity.Static(true)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    deps.Store,
		manager:  deps.Manager,
		checker:  checker,
		monitor:  deps.Monitor,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Metrics.Enabled {
		d.http = newHTTPServer(cfg.Metrics.Bind, d, logger)
	}
	return d, nil
}

// Start acquires the daemon lock, starts connectivity monitoring and loads
// the queue.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wpqueue daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg, nil)
	for _, result := range results {
		if !result.Passed {
			d.logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.Bool("required", result.Required),
				logging.String(logging.FieldEventType, "preflight_failed"),
			)
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if d.monitor != nil {
		if err := d.monitor.Start(d.ctx); err != nil {
			d.abortStart()
			return fmt.Errorf("start connectivity monitor: %w", err)
		}
		d.monitor.OnChange(d.handleConnectivity)
	}

	if err := d.manager.Initialize(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("initialize queue: %w", err)
	}

	if d.http != nil {
		if err := d.http.start(d.ctx); err != nil {
			logging.WarnWithContext(d.logger, "status endpoint unavailable", "http_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "metrics are not exported"),
			)
		}
	}

	d.running.Store(true)
	d.logger.Info("wpqueue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.backend()),
		logging.Bool("online", d.checker.Online()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	if d.monitor != nil {
		d.monitor.Stop()
	}
	d.cancel()
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

// Stop stops background processing, persists the queue and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.monitor != nil {
		d.monitor.Stop()
	}
	d.manager.Stop()

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.manager.Save(saveCtx); err != nil {
		logging.ErrorWithContext(d.logger, "persist queue on shutdown failed", "queue_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue store"),
			logging.String(logging.FieldImpact, "progress since the last successful step may be repeated"),
		)
	}

	if d.http != nil {
		d.http.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("wpqueue daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit enqueues a new post.
func (d *Daemon) Submit(ctx context.Context, payload queue.Payload) (string, error) {
	return d.manager.Add(ctx, payload)
}

// Views returns the queue projection shown by the CLI.
func (d *Daemon) Views() []queue.View {
	return d.manager.Views()
}

// Entry returns one entry by id.
func (d *Daemon) Entry(id string) (*queue.Entry, bool) {
	return d.manager.Get(id)
}

// Retry resumes a single entry.
func (d *Daemon) Retry(ctx context.Context, id string) error {
	return d.manager.Retry(ctx, id)
}

// Resume re-probes connectivity when monitored and resumes every unfinished
// entry. It returns how many runs were started.
func (d *Daemon) Resume(ctx context.Context) (int, error) {
	if d.monitor != nil {
		d.monitor.Check(ctx)
	}
	return d.manager.ResumeAll(ctx)
}

// Online reports the current connectivity verdict.
func (d *Daemon) Online() bool {
	return d.checker.Online()
}

// Status returns the daemon and workflow state.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Online:       d.checker.Online(),
		Workflow:     d.manager.Status(),
		Backend:      d.backend(),
		LockFilePath: d.lockPath,
		Socket:       d.cfg.Paths.Socket,
	}
	if status.Backend == "sqlite" {
		status.QueueDBPath = d.cfg.QueueDBPath()
	}
	return status
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) handleConnectivity(ctx context.Context, online bool) {
	if !online {
		d.logger.Info("connection lost; running uploads continue until they fail",
			logging.String(logging.FieldEventType, "connectivity_lost"),
		)
		return
	}
	started, err := d.manager.OnConnectivityRestored(ctx)
	if err != nil {
		d.logger.Warn("resume after reconnect failed", logging.Error(err))
		return
	}
	d.logger.Info("connection restored",
		logging.Int("resumed", started),
		logging.String(logging.FieldEventType, "connectivity_restored"),
	)
}

func (d *Daemon) backend() string {
	if d.cfg.Storage.Backend == "" {
		return "sqlite"
	}
	return d.cfg.Storage.Backend
}

// HTTPAddress returns the bound address of the status endpoint, or an empty
// string when it is disabled or not listening.
func (d *Daemon) HTTPAddress() string {
	return d.http.address()
}
