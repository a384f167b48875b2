// Package rate implements the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys live
// under the configured prefix:
//   - <prefix>:rl:u:<username>  failed logins per username
//   - <prefix>:rl:ip:<ip>       failed logins per client IP
//
// # What this package must NOT do
//
//   - Decide what a failed login is; the login flow does.
//   - Be imported outside the goGuard module.
package rate
