// Package demo is a small HTTP server showing the lifecycle patch in use.
//
// Handler chain, outermost first:
//   - lifecycle.Middleware (installs the "end" patch)
//   - RequestLogger (numbers requests, logs close/end/finish, publishes events)
//   - routes: GET /test1, GET /healthz, GET /api/requests, GET /ws/lifecycle
package demo
