package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWordPress(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateCredentials reports whether the default WordPress credentials are
// complete. Posts can still carry their own credentials, so Validate does not
// require them.
func (c *Config) ValidateCredentials() error {
	var missing []string
	if c.WordPress.SiteURL == "" {
		missing = append(missing, "wordpress.site_url")
	}
	if c.WordPress.Username == "" {
		missing = append(missing, "wordpress.username")
	}
	if c.WordPress.AppPassword == "" {
		missing = append(missing, "wordpress.app_password")
	}
	if len(missing) > 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("%s required. Set WP_SITE_URL, WP_USERNAME, WP_APP_PASSWORD or edit %s (create with 'wpqueue config init')", strings.Join(missing, ", "), defaultPath)
	}
	return nil
}

func (c *Config) validateWordPress() error {
	if c.WordPress.RequestTimeout < 0 {
		return errors.New("wordpress.request_timeout must be >= 0")
	}
	if c.WordPress.RequestsPerSecond < 0 {
		return errors.New("wordpress.requests_per_second must be >= 0")
	}
	if c.WordPress.RequestsPerSecond > 0 && c.WordPress.Burst <= 0 {
		return errors.New("wordpress.burst must be positive when requests_per_second is set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "sqlite":
		return nil
	case "redis":
		if c.Storage.RedisDB < 0 {
			return errors.New("storage.redis_db must be >= 0")
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage.backend %q", c.Storage.Backend)
	}
}

func (c *Config) validateConnectivity() error {
	switch c.Connectivity.Mode {
	case "auto", "online", "offline":
	default:
		return fmt.Errorf("unsupported connectivity.mode %q", c.Connectivity.Mode)
	}
	if c.Connectivity.ProbeURL != "" {
		parsed, err := url.Parse(c.Connectivity.ProbeURL)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("connectivity.probe_url %q is not a valid URL", c.Connectivity.ProbeURL)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.CompletedDisplayDelayMS < 0 {
		return errors.New("workflow.completed_display_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported logging.format %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported logging.level %q", c.Logging.Level)
	}
	return nil
}
