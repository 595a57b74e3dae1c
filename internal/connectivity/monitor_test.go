package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"wpqueue/internal/logging"
	"wpqueue/internal/testsupport"
)

func newTestMonitor(t *testing.T, probeURL string) *Monitor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.Mode = ModeAuto
	cfg.Connectivity.ProbeURL = probeURL
	cfg.Connectivity.ProbeTimeout = 2
	cfg.Connectivity.ProbeInterval = 3600
	return NewMonitor(cfg, logging.NewNop())
}

func TestNewCheckerModes(t *testing.T) {
	tests := []struct {
		mode        string
		wantMonitor bool
		wantOnline  bool
	}{
		{mode: ModeOnline, wantOnline: true},
		{mode: ModeOffline, wantOnline: false},
		{mode: ModeAuto, wantMonitor: true},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Connectivity.Mode = tc.mode
			checker, monitor := NewChecker(cfg, nil)
			if (monitor != nil) != tc.wantMonitor {
				t.Fatalf("monitor presence = %v, want %v", monitor != nil, tc.wantMonitor)
			}
			if !tc.wantMonitor && checker.Online() != tc.wantOnline {
				t.Fatalf("Online() = %v, want %v", checker.Online(), tc.wantOnline)
			}
		})
	}
}

func TestCheckReportsTransitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD probe, got %s", r.Method)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	url := server.URL
	monitor := newTestMonitor(t, url)

	var mu sync.Mutex
	var transitions []bool
	monitor.OnChange(func(_ context.Context, online bool) {
		mu.Lock()
		transitions = append(transitions, online)
		mu.Unlock()
	})

	ctx := context.Background()
	if !monitor.Check(ctx) {
		t.Fatal("expected any HTTP response to count as online")
	}
	if !monitor.Check(ctx) {
		t.Fatal("expected second probe online")
	}
	server.Close()
	if monitor.Check(ctx) {
		t.Fatal("expected closed server to be offline")
	}
	if monitor.Online() {
		t.Fatal("Online() should reflect the last probe")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestProbeWithoutURLAssumesOnline(t *testing.T) {
	monitor := newTestMonitor(t, "")
	if !monitor.Check(context.Background()) {
		t.Fatal("expected monitor without probe URL to report online")
	}
}

func TestTriggerReprobesImmediately(t *testing.T) {
	var mu sync.Mutex
	up := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := up
		mu.Unlock()
		if !ok {
			if hj, isHijacker := w.(http.Hijacker); isHijacker {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	monitor := newTestMonitor(t, server.URL)
	restored := make(chan struct{}, 1)
	monitor.OnChange(func(_ context.Context, online bool) {
		if online {
			restored <- struct{}{}
		}
	})

	if err := monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(monitor.Stop)
	if monitor.Online() {
		t.Fatal("expected initial probe to fail")
	}

	mu.Lock()
	up = true
	mu.Unlock()
	monitor.Trigger()

	select {
	case <-restored:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not re-probe")
	}
	if err := monitor.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestStaticChecker(t *testing.T) {
	if !Static(true).Online() || Static(false).Online() {
		t.Fatal("Static should return its fixed value")
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	add := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}}
	if !matcher.Evaluate(add) {
		t.Error("expected matcher to accept interface add")
	}
	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}}
	if !matcher.Evaluate(remove) {
		t.Error("expected matcher to accept interface remove")
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject block devices")
	}
}

func TestNetlinkWatcherLifecycle(t *testing.T) {
	var nilWatcher *netlinkWatcher
	nilWatcher.Start(context.Background())
	nilWatcher.Stop()
	if nilWatcher.Running() {
		t.Fatal("nil watcher should not run")
	}

	calls := 0
	watcher := newNetlinkWatcher(logging.NewNop(), func() { calls++ })
	watcher.Stop()
	watcher.handleEvent(netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "net"}})
	if calls != 1 {
		t.Fatalf("expected handler call, got %d", calls)
	}
	// Connecting needs privileges the test environment may lack; either
	// outcome is acceptable as long as it does not panic.
	watcher.Start(context.Background())
	watcher.Stop()
}
