// Package goSession is a cookie-based session engine: short-lived signed
// access tokens, single-use rotating refresh tokens and single-use email
// verification tokens, resolved into a per-request identity and permission
// level.
//
// The [Engine] is built once through [Builder] and is safe for concurrent use.
// All cross-request state lives in the injected [Store]; cookie changes are
// collected in an explicit [CookieJar] that the caller flushes onto the
// response.
//
// # Architecture boundaries
//
// goSession owns orchestration: login, logout, refresh, registration,
// verification and identity resolution. Token secrets are handled by
// tokenstore and secret, access tokens by jwt, levels by permission, and
// persistence by the store backends. HTTP wiring lives in middleware.
//
// # What this package must NOT do
//
//   - Persist or log raw token secrets.
//   - Branch on identity failure kinds beyond logging and audit: every
//     resolution failure collapses to the anonymous identity.
//   - Retry token consumption.
package goSession
