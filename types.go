package goGuard

import (
	"context"
	"time"
)

// TokenPair is the result of Issue, Refresh and Login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresAt    time.Time
}

// SessionInfo describes one live session of a principal.
type SessionInfo struct {
	SessionID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RevokeReason records why all sessions of a principal were revoked.
type RevokeReason string

const (
	RevokeForcedLogout  RevokeReason = "forced_logout"
	RevokePasswordReset RevokeReason = "password_reset"
	RevokeAdminDisable  RevokeReason = "admin_disable"
	RevokeUserLogoutAll RevokeReason = "logout_all"
)

// CredentialVerifier checks a username and password and returns the principal id.
// Implementations return an error (any error) to reject the credentials.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (principalID string, err error)
}

// CredentialVerifierFunc adapts a function to CredentialVerifier.
type CredentialVerifierFunc func(ctx context.Context, username, password string) (string, error)

func (f CredentialVerifierFunc) Verify(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}
