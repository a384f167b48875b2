// Package cache implements a read-through, cache-aside wrapper over Redis.
//
// # Failure modes handled
//
// Penetration: a confirmed-absent origin record is stored as a sentinel with a
// short fixed TTL, so repeated lookups for keys that never exist do not reach
// the origin.
//
// Avalanche: hit entries expire after a base TTL plus a random jitter.
//
// Breakdown: a miss is refilled under a per-key lock from package lock with a
// double check of the store, so concurrent misses on one key call the origin
// once. Callers that lose the lock poll the store with bounded backoff.
//
// # Architecture boundaries
//
// Values are encoded by a [Codec]; the default is deterministic CBOR. A
// payload that fails to decode is deleted and treated as a miss.
//
// # What this package must NOT do
//
//   - Import goGuard or session (no upward imports).
//   - Surface decode errors to callers.
//   - Enumerate keys with KEYS; bulk invalidation uses SCAN.
package cache
