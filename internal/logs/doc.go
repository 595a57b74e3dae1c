// Package logs reads the daemon's run log for `wpqueue logs`.
//
// Last returns the trailing lines of a file together with the byte offset
// where reading stopped, and Follow polls from that offset for new lines
// until its context is cancelled. Log rotation is not tracked: when the file
// shrinks below the saved offset, reading restarts from the beginning.
package logs
