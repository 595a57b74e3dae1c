package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// OpenSQLite initializes or connects to the queue database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	ctx = ensureContext(ctx)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// All returns every entry ordered by creation time.
func (s *SQLiteStore) All(ctx context.Context) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	var entries []*Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT id, record FROM entries ORDER BY created_at, id")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id     string
				record []byte
			)
			if err := rows.Scan(&id, &record); err != nil {
				return err
			}
			entry, err := DecodeEntry(record)
			if err != nil {
				return fmt.Errorf("entry %s: %w", id, err)
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("load", "", err)
	}
	sortEntries(entries)
	return entries, nil
}

// Get returns one entry or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	ctx = ensureContext(ctx)
	var record []byte
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT record FROM entries WHERE id = ?", id).Scan(&record)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("get", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	entry, err := DecodeEntry(record)
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	return entry, nil
}

// Put upserts one entry.
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	ctx = ensureContext(ctx)
	record, err := EncodeEntry(entry)
	if err != nil {
		return storageErr("put", entryID(entry), err)
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, upsertEntrySQL, entryArgs(entry, record)...)
		return execErr
	})
	return storageErr("put", entry.ID, err)
}

// Delete removes one entry; deleting a missing id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
		return execErr
	})
	return storageErr("delete", id, err)
}

// ReplaceAll swaps the stored set for entries inside one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, entries []*Entry) error {
	ctx = ensureContext(ctx)
	records := make([][]byte, len(entries))
	for i, entry := range entries {
		record, err := EncodeEntry(entry)
		if err != nil {
			return storageErr("replace", entryID(entry), err)
		}
		records[i] = record
	}
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, entry := range entries {
			if _, err := stmt.ExecContext(ctx, entryArgs(entry, records[i])...); err != nil {
				return fmt.Errorf("entry %s: %w", entry.ID, err)
			}
		}
		return tx.Commit()
	})
	return storageErr("replace", "", err)
}

// Clear removes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, "DELETE FROM entries")
		return execErr
	})
	return storageErr("clear", "", err)
}

const upsertEntrySQL = `INSERT INTO entries (id, status, record, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	record = excluded.record,
	updated_at = excluded.updated_at`

func entryArgs(entry *Entry, record []byte) []any {
	return []any{
		entry.ID,
		string(entry.Status),
		record,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func entryID(entry *Entry) string {
	if entry == nil {
		return ""
	}
	return entry.ID
}
