// Package secret owns the opaque token secret scheme.
//
// A raw secret is 256 random bits, base64url encoded. Storage never sees it:
// records are keyed by a lookup id (HMAC-SHA256 of the secret under a server
// key) and authenticated by a slow Argon2id hash of the secret. The id gives
// O(1) lookup, the hash keeps a leaked row or a leaked key from being enough
// to forge a token.
//
// No other package in this module touches these primitives directly.
package secret
