// Package connectivity decides whether the WordPress site is reachable.
//
// Monitor probes the configured URL with HEAD requests on an interval and
// re-probes immediately when the kernel reports a network interface change
// over udev netlink. Listeners registered with OnChange run on every
// transition; the daemon uses the offline-to-online edge to resume the queue.
// Static is a fixed answer for the online and offline modes.
package connectivity
