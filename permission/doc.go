// Package permission defines the ordered capability scale that route guards
// compare against.
//
// # Scale
//
//	Stranger < Unverified < User < Admin
//
// [Of] maps a subject to its level. It is pure and total: every input,
// including a nil subject, has exactly one level.
//
// # What this package must NOT do
//
//   - Access stores, cookies, or the network.
//   - Import goSession or any package that does.
//   - Grow per-resource ACLs; the level is the only authorization primitive.
package permission
