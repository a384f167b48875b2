// Package goGuard is the session core of an RBAC backend: it issues, validates,
// rotates and revokes access/refresh token pairs against a shared Redis store.
//
// The [Engine] composes four parts:
//
//   - package lock: named, TTL-bounded mutual exclusion.
//   - package cache: read-through cache-aside with null sentinels, jittered TTLs
//     and lock-guarded refills, used for identity lookups.
//   - package session: the per-principal session registry and revocation list.
//   - package jwt: access and refresh signers with distinct derived keys.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Flow orchestration, login throttling and audit dispatch live under
// internal/.
//
// # What this package must NOT do
//
//   - Read a "current user" from ambient state: every operation takes the
//     principal or token explicitly.
//   - Fail open: a store failure during Validate rejects the token.
//   - Reveal in error messages which validation check rejected a token.
package goGuard
