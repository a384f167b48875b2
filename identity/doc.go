// Package identity provides the RBAC identity view the request path reads:
// users, roles with their permission codes, and per-user permission sets.
//
// [CachedDirectory] fronts an origin [Directory] (see identity/postgres)
// with three keyed caches built on the Engine's store. Writers to the origin
// must call InvalidateUser or InvalidateRole right after each change.
//
// [IdentifierPool] hands out pre-generated, human-readable user identifiers
// from a Redis set. Refill is lock-guarded and meant to run as a periodic
// job; Next only refills when the pool is empty.
package identity
