package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"wpqueue/internal/config"
	"wpqueue/internal/queue"
	"wpqueue/internal/wordpress"
)

// Pinger verifies WordPress credentials.
type Pinger interface {
	Ping(ctx context.Context, creds wordpress.Credentials) error
}

// CheckWordPress verifies that the configured site accepts the configured
// application password. It uses a 15-second timeout and a single attempt.
func CheckWordPress(ctx context.Context, pinger Pinger, cfg *config.Config) Result {
	const name = "WordPress"

	if !cfg.HasCredentials() {
		return Result{Name: name, Detail: "site_url, username or app_password missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	creds := wordpress.Credentials{
		SiteURL:  cfg.WordPress.SiteURL,
		Username: cfg.WordPress.Username,
		Password: cfg.WordPress.AppPassword,
	}
	if err := pinger.Ping(checkCtx, creds); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (credentials accepted)", cfg.WordPress.SiteURL)}
}

// CheckRedis verifies the Redis backend answers PING.
func CheckRedis(ctx context.Context, cfg *config.Config) Result {
	const name = "Redis"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := queue.OpenRedis(checkCtx, queue.RedisOptions{
		Address:  cfg.Storage.RedisAddress,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
		Key:      cfg.Storage.RedisKey,
	})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Storage.RedisAddress, err)}
	}
	_ = store.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", cfg.Storage.RedisAddress)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeRemoteError produces a human-readable summary for credential check failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (site unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (site unreachable)"
	}
	var remote *wordpress.RemoteError
	if errors.As(err, &remote) && (remote.StatusCode == 401 || remote.StatusCode == 403) {
		return fmt.Sprintf("auth failed (HTTP %d)", remote.StatusCode)
	}
	return err.Error()
}
