package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/lock"
	"github.com/MrEthical07/goGuard/session"
)

// TokenSigner issues and parses one token kind.
type TokenSigner interface {
	Issue(principal, sessionID string) (string, *jwt.Claims, error)
	Parse(token string) (*jwt.Claims, error)
}

// SessionRegistry is the registry surface the flows use.
type SessionRegistry interface {
	Register(ctx context.Context, principal string, reg session.Registration) ([]session.Entry, error)
	Lookup(ctx context.Context, principal, sessionID string) (session.Entry, bool, error)
	Remove(ctx context.Context, principal, sessionID string) (session.Entry, bool, error)
	RevokeAll(ctx context.Context, principal string) (int, error)
	LoadRefresh(ctx context.Context, principal, sessionID string) (string, bool, error)
}

// RevocationList answers whether a token was revoked.
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// classifyStore maps registry and lock errors to a FailureKind.
func classifyStore(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, session.ErrSessionLimitReached):
		return FailureSessionLimit
	case errors.Is(err, session.ErrSuperseded):
		return FailureSuperseded
	case errors.Is(err, lock.ErrContention):
		return FailureLockContention
	case errors.Is(err, session.ErrStoreUnavailable), errors.Is(err, lock.ErrUnavailable):
		return FailureStoreUnavailable
	default:
		return FailureInternal
	}
}

func classifyToken(err error) FailureKind {
	if errors.Is(err, jwt.ErrExpired) {
		return FailureExpired
	}
	return FailureMalformed
}
