// Package preflight provides readiness checks for the paths and services
// wpqueue depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and refuses to start when the data
//     directory is unusable.
//   - The CLI "wpqueue config check" command prints every result so operators
//     can fix credentials before queuing posts.
//
// Remote checks are skipped when the corresponding feature is not configured.
package preflight
