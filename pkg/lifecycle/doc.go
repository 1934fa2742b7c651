// Package lifecycle adds an "end" notification to HTTP responses.
//
// The host stack (net/http) gives every request two completion points: the
// handler finished producing the response ("finish"), and the underlying
// request/connection went away ("close"). Patch listens once on the
// completion signal of a Target and re-emits a de-duplicated "end" signal on
// the same target, so downstream handlers get a single, reliable hook.
//
// Usage:
//   - Install Middleware first in the handler chain.
//   - Later handlers fetch the decorated writer with FromRequest and register
//     listeners with On/Once.
package lifecycle
