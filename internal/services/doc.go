// Package services defines shared utilities consumed by the publish pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue entry IDs, pipeline step names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (validation, remote, network, storage) with errors.Is
//     regardless of which package produced them.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the queue.
package services
