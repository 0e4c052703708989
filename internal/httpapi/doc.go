// Package httpapi is the JSON HTTP surface of sessiond, routed with chi.
//
// Every route below /auth and /account runs behind middleware.Authenticate,
// so session cookies are resolved, rotated and cleared uniformly. Handlers
// make their cookie changes through the request's CookieJar before writing
// the response.
package httpapi
