package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/internal/flows"
)

var (
	// ErrUnauthenticated is the only error a caller should surface to an end user
	// for a rejected token. Every *AuthError unwraps to it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by Login when the credential verifier rejects the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned by Login when the failed-login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrTokenExpired classifies a token past expiry plus skew.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked classifies a token on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenSuperseded classifies a structurally valid token whose session was evicted or rotated.
	ErrTokenSuperseded = errors.New("token superseded")
	// ErrMalformedToken classifies a token that fails parsing or signature checks.
	ErrMalformedToken = errors.New("malformed token")
	// ErrSessionLimitReached is the user-visible "too many active sessions" error.
	ErrSessionLimitReached = errors.New("too many active sessions")
	// ErrLockContention means another caller holds the lock; retry later.
	ErrLockContention = errors.New("retry later: lock contention")
	// ErrStoreUnavailable means the shared store failed or timed out.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned by methods on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AuthError is returned for every rejected token. Its message never reveals
// which check failed; errors.Is against the kind sentinels is available for
// internal logging and metrics.
type AuthError struct {
	Kind error
}

func (e *AuthError) Error() string {
	return ErrUnauthenticated.Error()
}

func (e *AuthError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrUnauthenticated}
	}
	return []error{ErrUnauthenticated, e.Kind}
}

func unauthenticated(kind error) error {
	return &AuthError{Kind: kind}
}

// tokenKindError returns the kind sentinel carried by an AuthError.
func tokenKindError(kind flows.FailureKind) error {
	switch kind {
	case flows.FailureExpired:
		return ErrTokenExpired
	case flows.FailureRevoked:
		return ErrTokenRevoked
	case flows.FailureSuperseded:
		return ErrTokenSuperseded
	case flows.FailureStoreUnavailable:
		return ErrStoreUnavailable
	default:
		return ErrMalformedToken
	}
}

// mapFailure converts a flow failure into the public error taxonomy.
func mapFailure(kind flows.FailureKind, cause error) error {
	var base error
	switch kind {
	case flows.FailureNone:
		return nil
	case flows.FailureMalformed, flows.FailureExpired, flows.FailureRevoked, flows.FailureSuperseded:
		return unauthenticated(tokenKindError(kind))
	case flows.FailureSessionLimit:
		return ErrSessionLimitReached
	case flows.FailureLockContention:
		return ErrLockContention
	case flows.FailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.FailureRateLimited:
		return ErrLoginRateLimited
	case flows.FailureStoreUnavailable:
		base = ErrStoreUnavailable
	default:
		if cause == nil {
			return errors.New("goGuard: internal error")
		}
		return fmt.Errorf("goGuard: %w", cause)
	}
	if cause == nil {
		return base
	}
	return fmt.Errorf("%w: %v", base, cause)
}
