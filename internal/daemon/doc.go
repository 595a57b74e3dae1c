// Package daemon coordinates the long-running wpqueue process.
//
// It wires configuration, queue storage, the workflow manager and the
// connectivity monitor into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon resumes the queue whenever the site
// becomes reachable again, serves the optional metrics and status endpoint,
// and writes the full queue back to the store on shutdown.
//
// Keep orchestration logic here: publishing steps live in publish and queue
// bookkeeping in workflow, while the daemon focuses on startup, shutdown and
// the wiring between them.
package daemon
