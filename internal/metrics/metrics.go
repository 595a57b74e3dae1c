// Package metrics exposes Prometheus instrumentation for the publish queue.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wpqueue"

var (
	once sync.Once

	remoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "WordPress API requests by operation and status code.",
		},
		[]string{"op", "code"},
	)

	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "WordPress API request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_runs_total",
			Help:      "Processor runs by outcome.",
		},
		[]string{"outcome"},
	)

	entries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Queue entries by status.",
		},
		[]string{"status"},
	)

	online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 when the connectivity monitor reports online.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(remoteRequests, remoteDuration, outcomes, entries, online)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveRemote records one WordPress API call. code is 0 for transport failures.
func ObserveRemote(op string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	remoteRequests.WithLabelValues(op, label).Inc()
	remoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncOutcome counts a finished processor run ("completed" or "failed").
func IncOutcome(outcome string) {
	outcomes.WithLabelValues(outcome).Inc()
}

// SetEntries publishes the per-status entry counts. Statuses absent from
// counts are reset to zero.
func SetEntries(counts map[string]int, statuses []string) {
	for _, status := range statuses {
		entries.WithLabelValues(status).Set(float64(counts[status]))
	}
}

// SetOnline records the connectivity state.
func SetOnline(value bool) {
	if value {
		online.Set(1)
		return
	}
	online.Set(0)
}
