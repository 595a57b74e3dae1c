// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between queue payloads and lightweight wire representations. The server
// embeds the daemon while the client uses short dial timeouts so CLI commands
// fall back to direct queue access quickly when the daemon is not running.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
