package flows

import (
	"context"

	"github.com/MrEthical07/goGuard/jwt"
)

// ValidateDeps captures validate flow dependencies.
type ValidateDeps struct {
	Access     TokenSigner
	Revocation RevocationList
	Registry   SessionRegistry
}

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure FailureKind
	Err     error
	Claims  *jwt.Claims
}

// RunValidate rejects a token that fails signature or expiry checks, is on the
// revocation list, or is not the access token on record for its session. Store
// failures are reported as FailureStoreUnavailable so callers fail closed.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Access.Parse(token)
	if err != nil {
		return ValidateResult{Failure: classifyToken(err), Err: err}
	}

	revoked, err := deps.Revocation.IsRevoked(ctx, token)
	if err != nil {
		return ValidateResult{Failure: FailureStoreUnavailable, Err: err, Claims: claims}
	}
	if revoked {
		return ValidateResult{Failure: FailureRevoked, Claims: claims}
	}

	entry, ok, err := deps.Registry.Lookup(ctx, claims.Principal(), claims.SID)
	if err != nil {
		return ValidateResult{Failure: FailureStoreUnavailable, Err: err, Claims: claims}
	}
	if !ok || entry.AccessToken != token {
		return ValidateResult{Failure: FailureSuperseded, Claims: claims}
	}

	return ValidateResult{Claims: claims}
}
