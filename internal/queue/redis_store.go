package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps every entry as one field of a single hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to Redis and verifies the server answers.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ensureContext(ctx)).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Address, err)
	}
	return NewRedisStore(client, opts.Key), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if strings.TrimSpace(key) == "" {
		key = "wpqueue:entries"
	}
	return &RedisStore{client: client, key: key}
}

// All returns every entry ordered by creation time.
func (r *RedisStore) All(ctx context.Context) ([]*Entry, error) {
	values, err := r.client.HGetAll(ensureContext(ctx), r.key).Result()
	if err != nil {
		return nil, storageErr("load", "", err)
	}
	entries := make([]*Entry, 0, len(values))
	for id, raw := range values {
		entry, err := DecodeEntry([]byte(raw))
		if err != nil {
			return nil, storageErr("load", id, err)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries, nil
}

// Get returns one entry or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (*Entry, error) {
	raw, err := r.client.HGet(ensureContext(ctx), r.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storageErr("get", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	entry, err := DecodeEntry(raw)
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return entry, nil
}

// Put upserts one entry.
func (r *RedisStore) Put(ctx context.Context, entry *Entry) error {
	record, err := EncodeEntry(entry)
	if err != nil {
		return storageErr("put", entryID(entry), err)
	}
	return storageErr("put", entry.ID, r.client.HSet(ensureContext(ctx), r.key, entry.ID, record).Err())
}

// Delete removes one entry.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return storageErr("delete", id, r.client.HDel(ensureContext(ctx), r.key, id).Err())
}

// ReplaceAll swaps the stored set inside MULTI/EXEC.
func (r *RedisStore) ReplaceAll(ctx context.Context, entries []*Entry) error {
	fields := make([]any, 0, len(entries)*2)
	for _, entry := range entries {
		record, err := EncodeEntry(entry)
		if err != nil {
			return storageErr("replace", entryID(entry), err)
		}
		fields = append(fields, entry.ID, record)
	}
	ctx = ensureContext(ctx)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, r.key, fields...)
		}
		return nil
	})
	return storageErr("replace", "", err)
}

// Clear removes every entry.
func (r *RedisStore) Clear(ctx context.Context) error {
	return storageErr("clear", "", r.client.Del(ensureContext(ctx), r.key).Err())
}

// Close releases the client connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
