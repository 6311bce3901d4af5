// Package server hosts the Fiber HTTP service the launcher UI talks to:
// request-id and recover middleware, a JSON error handler, and the helpers
// shared by the route groups in internal/server/routes. Routes receive their
// dependencies explicitly so tests can assemble an app without a worker.
package server
