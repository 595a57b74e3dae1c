package preflight

import (
	"context"

	"wpqueue/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes all applicable preflight checks for the given config.
// pinger may be nil, in which case the WordPress check is skipped.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	data := CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)
	data.Required = true
	results = append(results, data)
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Storage.Backend == "redis" {
		redisResult := CheckRedis(ctx, cfg)
		redisResult.Required = true
		results = append(results, redisResult)
	}

	if pinger != nil && cfg.HasCredentials() {
		results = append(results, CheckWordPress(ctx, pinger, cfg))
	}

	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
