// Package middleware adapts goGuard to net/http.
//
// [Guard] resolves the bearer token to a principal and stores it in the
// request context with goGuard.WithPrincipal. [RequirePermission] and
// [RequireDataAccess] sit behind Guard and consult an access checker.
// [ClientIP] records the remote address for login throttling and audit.
//
// This package does not parse tokens or talk to Redis; every decision is
// delegated to the Engine or the checker.
package middleware
