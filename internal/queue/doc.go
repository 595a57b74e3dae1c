// Package queue persists publish queue entries and exposes the pure helpers
// that describe their lifecycle.
//
// An Entry is a post waiting for, undergoing, or finished with remote
// publication. It carries an immutable payload snapshot plus the recovery
// state (remote post id, uploaded media prefix) that lets an interrupted run
// resume without repeating committed remote work.
//
// Store abstracts the persistent record set. Two backends exist: SQLite
// (default, WAL mode, schema versioned and migrated in place) and Redis (one
// hash keyed by entry id). Both encode entries through the versioned codec in
// codec.go, so the on-disk format can evolve without silently truncating
// records written by a newer build.
package queue
