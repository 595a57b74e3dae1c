package testsupport

import (
	"path/filepath"
	"testing"

	"wpqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.Socket = filepath.Join(base, "data", "wpqueue.sock")
	cfgVal.Connectivity.Mode = "online"
	cfgVal.Connectivity.Netlink = false
	cfgVal.Workflow.CompletedDisplayDelayMS = 0
	cfgVal.WordPress.RequestsPerSecond = 0
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSite points the config's default credentials at siteURL.
func WithSite(siteURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.WordPress.SiteURL = siteURL
		b.cfg.WordPress.Username = "editor"
		b.cfg.WordPress.AppPassword = "app-pass"
		b.cfg.Connectivity.ProbeURL = siteURL
	}
}

// WithConnectivityMode overrides connectivity.mode.
func WithConnectivityMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Connectivity.Mode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
