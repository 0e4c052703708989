// Package middleware adapts the goSession engine to net/http.
//
// # Identity
//
//   - [Authenticate] resolves the caller from the session cookies on every
//     request and always calls the next handler, anonymous or not.
//   - [RequireLevel] and [RequireAtLeast] guard routes by permission level.
//
// Cookie changes made by the engine during the request (rotation, logout,
// clearing of bad credentials) are written just before the response header.
//
// # Observability
//
// [RequestLogger] and [RequestMetrics] are access-log and Prometheus
// middlewares used by cmd/sessiond.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Touch the store (Engine handles I/O).
//   - Make authorization decisions beyond the permission level range.
package middleware
