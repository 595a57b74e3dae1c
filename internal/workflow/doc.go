// Package workflow owns the in-memory publish queue and drives entries
// through the post processor.
//
// The Manager mirrors every entry to the persistent store, starts at most one
// processor run per entry id, and resumes unfinished work when the daemon
// starts online or connectivity returns. Completed entries linger for a short
// display delay so renderers can show the success state before the row is
// purged.
//
// Renderers receive a fresh []queue.View after every change; notifications are
// sent for each offline submission and for every run outcome.
package workflow
