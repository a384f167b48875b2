// Package lock provides named, TTL-bounded mutual exclusion over Redis.
//
// A lock is a single key written with SET NX PX. Existence of the key means the
// lock is held; the TTL is the only deadlock-prevention mechanism, so a holder
// that crashes releases implicitly once the TTL elapses.
//
// # Architecture boundaries
//
// [Service.TryAcquire] is a single non-blocking attempt. Callers that need
// blocking semantics use [Service.Acquire], which wraps TryAcquire with a
// bounded backoff. The service itself never spins.
//
// # What this package must NOT do
//
//   - Import goGuard, cache, or session (no upward imports).
//   - Treat a store timeout as "not held": failures surface as [ErrUnavailable].
package lock
