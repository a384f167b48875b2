package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/session"
)

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	NewSessionID func() string
	Now          func() time.Time
	Access       TokenSigner
	Refresh      TokenSigner
	Registry     SessionRegistry
	MaxSessions  int
	Evict        bool
}

// IssueResult carries the issued pair or failure metadata.
type IssueResult struct {
	Failure      FailureKind
	Err          error
	SessionID    string
	AccessToken  string
	RefreshToken string
	AccessClaims *jwt.Claims
	Evicted      []session.Entry
}

// Rotation names the session a refresh retires and the refresh token presented for it.
type Rotation struct {
	SessionID    string
	RefreshToken string
}

// RunIssue signs a fresh token pair for principal and registers the session.
// A non-nil rot retires that session in the same registry write.
func RunIssue(ctx context.Context, principal string, rot *Rotation, deps IssueDeps) IssueResult {
	sid := deps.NewSessionID()

	access, accessClaims, err := deps.Access.Issue(principal, sid)
	if err != nil {
		return IssueResult{Failure: FailureInternal, Err: err, SessionID: sid}
	}
	refresh, refreshClaims, err := deps.Refresh.Issue(principal, sid)
	if err != nil {
		return IssueResult{Failure: FailureInternal, Err: err, SessionID: sid}
	}

	reg := session.Registration{
		Entry: session.Entry{
			SessionID:   sid,
			AccessToken: access,
			CreatedAt:   deps.Now().UnixMilli(),
			ExpiresAt:   jwt.ExpiresAt(accessClaims).UnixMilli(),
		},
		MaxSessions:      deps.MaxSessions,
		Evict:            deps.Evict,
		RefreshToken:     refresh,
		RefreshExpiresAt: jwt.ExpiresAt(refreshClaims).UnixMilli(),
	}
	if rot != nil {
		reg.Replaces = rot.SessionID
		reg.ExpectRefresh = rot.RefreshToken
	}

	evicted, err := deps.Registry.Register(ctx, principal, reg)
	if err != nil {
		return IssueResult{Failure: classifyStore(err), Err: err, SessionID: sid}
	}

	return IssueResult{
		SessionID:    sid,
		AccessToken:  access,
		RefreshToken: refresh,
		AccessClaims: accessClaims,
		Evicted:      evicted,
	}
}
