package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wpqueue/internal/config"
	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
)

// Runner drives one entry to completion or failure.
type Runner interface {
	Run(ctx context.Context, entry *queue.Entry, rec publish.Recorder) error
}

// Connectivity reports whether the remote site is believed reachable.
type Connectivity interface {
	Online() bool
}

// QueueRenderer receives the visible queue after every change.
type QueueRenderer interface {
	RenderQueue(views []queue.View)
}

// RendererFunc adapts a function to QueueRenderer.
type RendererFunc func(views []queue.View)

// RenderQueue calls f(views).
func (f RendererFunc) RenderQueue(views []queue.View) { f(views) }

// Manager coordinates queue entries, their persistence and processor runs.
type Manager struct {
	cfg          *config.Config
	store        queue.Store
	runner       Runner
	connectivity Connectivity
	logger       *slog.Logger
	notifier     notifications.Service
	renderer     QueueRenderer
	now          func() time.Time
	displayDelay time.Duration

	ready    chan struct{}
	initOnce sync.Once

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup

	renderMu sync.Mutex

	mu       sync.Mutex
	entries  map[string]*queue.Entry
	inFlight map[string]bool
	progress map[string]float64
	timers   map[string]*time.Timer
	deferred bool
	stopped  bool
	lastErr  error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier routes toasts to notifier instead of the config-derived service.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithRenderer installs a queue renderer.
func WithRenderer(renderer QueueRenderer) ManagerOption {
	return func(m *Manager) {
		m.renderer = renderer
	}
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. Initialize must be called before
// the manager accepts entries.
func NewManager(cfg *config.Config, store queue.Store, runner Runner, connectivity Connectivity, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		connectivity: connectivity,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewService(cfg),
		now:          time.Now,
		displayDelay: cfg.CompletedDisplayDelay(),
		ready:        make(chan struct{}),
		runCtx:       runCtx,
		cancelRun:    cancel,
		entries:      make(map[string]*queue.Entry),
		inFlight:     make(map[string]bool),
		progress:     make(map[string]float64),
		timers:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) online() bool {
	if m.connectivity == nil {
		return true
	}
	return m.connectivity.Online()
}

// waitReady blocks until Initialize has loaded the store.
func (m *Manager) waitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
