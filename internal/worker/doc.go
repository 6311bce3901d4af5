// Package worker talks to the out-of-process cache worker over HTTP. The same
// endpoint serves the version catalog, the fire-and-forget cache commands and
// a long-lived NDJSON progress stream. Command calls share one pooled
// transport and are bounded by the configured timeout; the progress stream
// uses the same transport without a client timeout and lives until its
// context is cancelled.
package worker
