// Package jwt signs and verifies goGuard access and refresh tokens.
//
// # Key separation
//
// Access and refresh tokens are signed with distinct keys derived from one
// master secret with HKDF-SHA256 under different info labels. Each token also
// carries a "typ" claim, so a refresh token is rejected by the access
// [Manager] and vice versa even before the signature check fails.
//
// # Clock skew
//
// The configured leeway applies to expiry comparisons only; signatures are
// checked exactly.
//
// # What this package must NOT do
//
//   - Touch Redis or know about sessions beyond carrying the session id.
//   - Accept algorithms other than the configured one.
package jwt
