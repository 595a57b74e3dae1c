// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates queue views and workflow diagnostics into
// transport-friendly DTOs so the CLI and HTTP consumers never depend on the
// internal queue types.
//
// # Key Types
//
// QueueItem: transport representation of a queue entry with progress, remote
// post id, link and last error.
//
// WorkflowStatus: initialization state, connectivity verdict, in-flight runs
// and per-status counts.
//
// DaemonStatus: aggregated runtime information including storage paths.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.PostFormat)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
