package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wpqueue/internal/config"
	"wpqueue/internal/logging"
	"wpqueue/internal/metrics"
)

// Modes accepted by connectivity.mode.
const (
	ModeAuto    = "auto"
	ModeOnline  = "online"
	ModeOffline = "offline"
)

// Checker answers whether the site is currently reachable.
type Checker interface {
	Online() bool
}

// ChangeFunc is invoked on every online/offline transition.
type ChangeFunc func(ctx context.Context, online bool)

// Static is a Checker with a fixed answer.
type Static bool

// Online returns the fixed answer.
func (s Static) Online() bool { return bool(s) }

// Monitor probes reachability and reports transitions.
type Monitor struct {
	logger   *slog.Logger
	client   *http.Client
	probeURL string
	interval time.Duration
	netlink  *netlinkWatcher

	online  atomic.Bool
	trigger chan struct{}

	mu        sync.Mutex
	listeners []ChangeFunc
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewChecker returns a Static checker for the fixed modes and a Monitor for
// auto mode.
func NewChecker(cfg *config.Config, logger *slog.Logger) (Checker, *Monitor) {
	switch strings.ToLower(strings.TrimSpace(cfg.Connectivity.Mode)) {
	case ModeOnline:
		return Static(true), nil
	case ModeOffline:
		return Static(false), nil
	default:
		monitor := NewMonitor(cfg, logger)
		return monitor, monitor
	}
}

// NewMonitor constructs a Monitor from configuration. It does not probe until
// Start or Check is called.
func NewMonitor(cfg *config.Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Monitor{
		logger:   logging.NewComponentLogger(logger, "connectivity"),
		client:   &http.Client{Timeout: cfg.ProbeTimeout()},
		probeURL: strings.TrimSpace(cfg.Connectivity.ProbeURL),
		interval: cfg.ProbeInterval(),
		trigger:  make(chan struct{}, 1),
	}
	if cfg.Connectivity.Netlink {
		m.netlink = newNetlinkWatcher(m.logger, m.Trigger)
	}
	return m
}

// Online reports the result of the most recent probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnChange registers fn for future transitions.
func (m *Monitor) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Trigger requests an immediate probe. It never blocks.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Start probes once synchronously, then keeps probing in the background
// until ctx ends or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	online := m.Check(runCtx)
	m.logger.Info("connectivity monitor started",
		logging.Bool("online", online),
		logging.String("probe_url", m.probeURL),
		logging.Duration("interval", m.interval),
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
	)

	if m.netlink != nil {
		m.netlink.Start(runCtx)
	}
	go m.loop(runCtx)
	return nil
}

// Stop ends background probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	if m.netlink != nil {
		m.netlink.Stop()
	}
}

// Check probes now, records the result and notifies listeners on change.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx)
	previous := m.online.Swap(online)
	metrics.SetOnline(online)
	if previous == online {
		return online
	}

	if online {
		m.logger.Info("site reachable", logging.String(logging.FieldEventType, "connectivity_online"))
	} else {
		logging.WarnWithContext(m.logger, "site unreachable", "connectivity_offline",
			logging.String("probe_url", m.probeURL),
			logging.String(logging.FieldImpact, "new posts are queued until the site is reachable"),
		)
	}

	m.mu.Lock()
	listeners := append([]ChangeFunc(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, online)
	}
	return online
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			m.Check(ctx)
		case <-m.trigger:
			m.Check(ctx)
		}
	}
}

// probe treats any HTTP response as reachable; only transport failures count
// as offline. Without a probe URL the site is assumed reachable.
func (m *Monitor) probe(ctx context.Context) bool {
	if m.probeURL == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.logger.Debug("build probe request failed", logging.Error(err))
		return false
	}
	req.Header.Set("User-Agent", "wpqueue/0.1.0")
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("probe failed", logging.Error(err))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}
