// Package publish drives one queue entry through its remote publication run.
//
// A run is create-draft, upload each pending image, then finalize. State is
// handed to a Recorder after every remote step so a run interrupted at any
// point resumes from the last persisted step: an existing remote post id is
// reused and only images beyond the uploaded prefix are sent.
package publish
