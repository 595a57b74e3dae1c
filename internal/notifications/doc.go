// Package notifications delivers queue outcome messages to the user.
//
// The ntfy implementation publishes to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Severity gating follows the
// [notifications] section so operators can silence success chatter while still
// hearing about failures.
//
// Callers depend only on the Service interface; the daemon passes the same
// value to the queue manager and the connectivity monitor.
package notifications
