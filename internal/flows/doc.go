// Package flows contains the orchestration for every token authority
// operation: issue, validate, refresh, revoke, logout and login.
//
// Each Run function takes a dependency struct and returns a result carrying a
// [FailureKind] instead of a public error. The Engine maps kinds to errors,
// metrics and audit events.
//
// # Architecture boundaries
//
// Flows coordinate the session registry, revocation list, token signers and
// the lock service. They do NOT own any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Talk to Redis directly.
package flows
