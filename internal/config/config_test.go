package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"wpqueue/internal/config"
)

func clearWordPressEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"WP_SITE_URL", "WP_USERNAME", "WP_APP_PASSWORD", "WPQUEUE_NTFY_TOPIC", "WPQUEUE_REDIS_PASSWORD"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearWordPressEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "wpqueue")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.Socket != filepath.Join(wantData, "wpqueue.sock") {
		t.Fatalf("unexpected socket: %q", cfg.Paths.Socket)
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Connectivity.Mode != "auto" {
		t.Fatalf("unexpected connectivity mode: %q", cfg.Connectivity.Mode)
	}
	if cfg.CompletedDisplayDelay() != 3*time.Second {
		t.Fatalf("unexpected completed display delay: %v", cfg.CompletedDisplayDelay())
	}
	if cfg.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout by default, got %v", cfg.RequestTimeout())
	}
	if cfg.HasCredentials() {
		t.Fatal("expected no credentials by default")
	}
	if err := cfg.ValidateCredentials(); err == nil {
		t.Fatal("expected credential validation error")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearWordPressEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wpqueue.toml")

	type payload struct {
		WordPress struct {
			SiteURL     string `toml:"site_url"`
			Username    string `toml:"username"`
			AppPassword string `toml:"app_password"`
		} `toml:"wordpress"`
		Workflow struct {
			CompletedDisplayDelayMS int `toml:"completed_display_delay_ms"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.WordPress.SiteURL = "https://blog.example.com/"
	custom.WordPress.Username = "editor"
	custom.WordPress.AppPassword = "abcd efgh"
	custom.Workflow.CompletedDisplayDelayMS = 500
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.WordPress.SiteURL != "https://blog.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.WordPress.SiteURL)
	}
	if cfg.Connectivity.ProbeURL != "https://blog.example.com" {
		t.Fatalf("expected probe url to default to site url, got %q", cfg.Connectivity.ProbeURL)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials returned error: %v", err)
	}
	if cfg.CompletedDisplayDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected delay: %v", cfg.CompletedDisplayDelay())
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	clearWordPressEnv(t)
	for _, key := range []string{"WP_SITE_URL", "WP_USERNAME", "WP_APP_PASSWORD"} {
		os.Unsetenv(key)
	}
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wpqueue.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "WP_SITE_URL=https://dotenv.example.com\nWP_USERNAME=dot\nWP_APP_PASSWORD=secret\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		for _, key := range []string{"WP_SITE_URL", "WP_USERNAME", "WP_APP_PASSWORD"} {
			os.Unsetenv(key)
		}
	})

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WordPress.SiteURL != "https://dotenv.example.com" {
		t.Fatalf("expected site url from .env, got %q", cfg.WordPress.SiteURL)
	}
	if cfg.WordPress.Username != "dot" || cfg.WordPress.AppPassword != "secret" {
		t.Fatalf("unexpected credentials from .env: %+v", cfg.WordPress)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestEnvOverridesEmptyFields(t *testing.T) {
	clearWordPressEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WP_SITE_URL", "https://env.example.com")
	t.Setenv("WPQUEUE_NTFY_TOPIC", "https://ntfy.sh/blog")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WordPress.SiteURL != "https://env.example.com" {
		t.Fatalf("unexpected site url: %q", cfg.WordPress.SiteURL)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/blog" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"mode", func(c *config.Config) { c.Connectivity.Mode = "sometimes" }, "connectivity.mode"},
		{"delay", func(c *config.Config) { c.Workflow.CompletedDisplayDelayMS = -1 }, "completed_display_delay_ms"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"burst", func(c *config.Config) { c.WordPress.Burst = 0 }, "wordpress.burst"},
		{"probe", func(c *config.Config) { c.Connectivity.ProbeURL = "not a url" }, "probe_url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearWordPressEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("unexpected backend: %q", cfg.Storage.Backend)
	}
}
