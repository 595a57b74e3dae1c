package testsupport

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"wpqueue/internal/config"
	"wpqueue/internal/queue"
)

// MustOpenStore opens the SQLite queue store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.SQLiteStore {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := queue.OpenSQLite(context.Background(), cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("queue.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRedisStore starts an in-process Redis and opens a store against it.
func MustOpenRedisStore(t testing.TB) (*queue.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	store, err := queue.OpenRedis(context.Background(), queue.RedisOptions{
		Address: server.Addr(),
		Key:     "wpqueue:test",
	})
	if err != nil {
		t.Fatalf("queue.OpenRedis: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store, server
}

// Credentials returns credentials for siteURL.
func Credentials(siteURL string) queue.Credentials {
	return queue.Credentials{SiteURL: siteURL, Username: "editor", Password: "app-pass"}
}

// NewEntry builds a queued entry with imageCount small images.
func NewEntry(id, siteURL, text string, imageCount int) *queue.Entry {
	payload := queue.Payload{
		Text:        text,
		Images:      Images(imageCount),
		Status:      queue.ModePublish,
		Format:      queue.DefaultFormat(imageCount),
		Credentials: Credentials(siteURL),
	}
	return queue.NewEntry(id, payload, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// Images returns n distinct small images named image-1.jpg, image-2.jpg, ...
func Images(n int) []queue.Image {
	if n <= 0 {
		return nil
	}
	images := make([]queue.Image, n)
	for i := range images {
		images[i] = queue.Image{
			Data:     ImageBytes(i+1, 2048),
			Filename: "image-" + strconv.Itoa(i+1) + ".jpg",
		}
	}
	return images
}

// ImageBytes returns size bytes filled with a pattern derived from seed.
func ImageBytes(seed, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((seed*31 + i) % 251)
	}
	return data
}

// MustPut persists entries or fails the test.
func MustPut(t testing.TB, store queue.Store, entries ...*queue.Entry) {
	t.Helper()
	for _, entry := range entries {
		if err := store.Put(context.Background(), entry); err != nil {
			t.Fatalf("store.Put(%s): %v", entry.ID, err)
		}
	}
}
