// Package session provides the Redis-backed session registry and revocation
// list used by the token authority.
//
// # Storage layout
//
// Each principal owns an insertion-ordered Redis list of encoded [Entry]
// values (oldest first) and a hash of refresh records keyed by session id.
// Revoked tokens are stored under the BLAKE3 digest of the token value with a
// TTL equal to the token's remaining accepted lifetime.
//
// # Architecture boundaries
//
// This package owns list bookkeeping, eviction and the revocation list. It does
// NOT parse or sign tokens: callers pass expiry times alongside token values.
// Register, Remove and RevokeAll for one principal are serialized by a lock
// from package lock keyed on the principal id.
//
// # What this package must NOT do
//
//   - Import goGuard or jwt (no upward imports).
//   - Report "not revoked" or "not found" when the store failed.
package session
