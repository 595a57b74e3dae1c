package queue

import (
	"context"
	"fmt"
	"sort"

	"wpqueue/internal/config"
)

// Store is the persistent record set of queue entries.
//
// Put upserts a single entry without touching others. ReplaceAll swaps the
// whole set in one transaction so readers never observe an empty store
// between the clear and the repopulate.
type Store interface {
	All(ctx context.Context) ([]*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, entries []*Entry) error
	Clear(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.QueueDBPath())
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Address:  cfg.Storage.RedisAddress,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Key:      cfg.Storage.RedisKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// Counts tallies entries per status.
func Counts(entries []*Entry) map[Status]int {
	counts := make(map[Status]int, len(statusOrder))
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}

func sortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
