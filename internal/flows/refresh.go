package flows

import (
	"context"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/MrEthical07/goGuard/jwt"
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Refresh  TokenSigner
	Registry SessionRegistry
	// RunExclusive runs fn under the named lock or returns a contention error.
	RunExclusive func(ctx context.Context, name string, fn func(context.Context) error) error
	Issue        func(ctx context.Context, principal string, rot *Rotation) IssueResult
}

// RefreshResult carries the rotated pair or failure metadata.
type RefreshResult struct {
	IssueResult
	Claims *jwt.Claims
}

// RefreshLockName returns the lock guarding rotation of token.
func RefreshLockName(token string) string {
	sum := blake3.Sum256([]byte(token))
	return "refresh:" + hex.EncodeToString(sum[:16])
}

// RunRefresh rotates refreshToken into a new pair. Under the lock keyed by
// the token it requires the token to equal the one on record for its
// session, then issues a pair that replaces the session. Nothing is consumed
// unless the new pair is registered.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Refresh.Parse(refreshToken)
	if err != nil {
		return RefreshResult{IssueResult: IssueResult{Failure: classifyToken(err), Err: err}}
	}

	var res RefreshResult
	res.Claims = claims

	err = deps.RunExclusive(ctx, RefreshLockName(refreshToken), func(ctx context.Context) error {
		stored, ok, err := deps.Registry.LoadRefresh(ctx, claims.Principal(), claims.SID)
		if err != nil {
			res.IssueResult = IssueResult{Failure: FailureStoreUnavailable, Err: err, SessionID: claims.SID}
			return nil
		}
		if !ok || stored != refreshToken {
			res.IssueResult = IssueResult{Failure: FailureSuperseded, SessionID: claims.SID}
			return nil
		}

		res.IssueResult = deps.Issue(ctx, claims.Principal(), &Rotation{SessionID: claims.SID, RefreshToken: refreshToken})
		return nil
	})
	if err != nil {
		res.IssueResult = IssueResult{Failure: classifyStore(err), Err: err, SessionID: claims.SID}
	}
	return res
}
