// Package main hosts the wpqueue CLI entrypoint and command graph.
//
// The Cobra-based command tree composes posts, inspects and resumes the
// publish queue, and controls the daemon. Commands talk to a running daemon
// over its IPC socket and fall back to direct queue storage access when no
// daemon is running, so posts written offline are never lost.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
