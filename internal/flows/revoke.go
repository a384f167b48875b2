package flows

import (
	"context"
)

// RevokeResult reports how many sessions a revoke cleared.
type RevokeResult struct {
	Failure FailureKind
	Err     error
	Revoked int
}

// RunRevoke revokes every session of principal.
func RunRevoke(ctx context.Context, principal string, registry SessionRegistry) RevokeResult {
	n, err := registry.RevokeAll(ctx, principal)
	if err != nil {
		return RevokeResult{Failure: classifyStore(err), Err: err}
	}
	return RevokeResult{Revoked: n}
}

// LogoutResult reports a single-session logout.
type LogoutResult struct {
	ValidateResult
	Removed bool
}

// RunLogout validates accessToken and removes its session.
func RunLogout(ctx context.Context, accessToken string, deps ValidateDeps) LogoutResult {
	v := RunValidate(ctx, accessToken, deps)
	if v.Failure != FailureNone {
		return LogoutResult{ValidateResult: v}
	}

	_, removed, err := deps.Registry.Remove(ctx, v.Claims.Principal(), v.Claims.SID)
	if err != nil {
		v.Failure, v.Err = classifyStore(err), err
		return LogoutResult{ValidateResult: v}
	}
	return LogoutResult{ValidateResult: v, Removed: removed}
}
