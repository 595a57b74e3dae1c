// Package wordpress talks to the WordPress REST API (wp/v2) on behalf of the
// publish pipeline.
//
// The Client performs the three remote steps of a publish run: creating a
// placeholder draft, uploading media attached to it, and finalizing the post
// with rendered Gutenberg block content. Every call is authenticated with
// HTTP Basic auth using an application password, throttled by a token bucket,
// and observed in Prometheus. Failures come back as *RemoteError (non-2xx),
// *NetworkError (transport), or *ValidationError (rejected locally before any
// request is made); each matches the corresponding services marker.
package wordpress
