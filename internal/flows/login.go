package flows

import (
	"context"
	"errors"
)

// LoginLimiter throttles failed logins.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, username, ip string) error
	IncrementLogin(ctx context.Context, username, ip string) error
	ResetLogin(ctx context.Context, username, ip string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Verify      func(ctx context.Context, username, password string) (string, error)
	Limiter     LoginLimiter
	RateLimited error
	Issue       func(ctx context.Context, principal string) IssueResult
	Warn        func(msg string, args ...any)
}

// LoginResult carries the issued pair and the verified principal.
type LoginResult struct {
	IssueResult
	Principal string
}

// RunLogin verifies credentials under the failed-login throttle and issues a pair.
func RunLogin(ctx context.Context, username, password, ip string, deps LoginDeps) LoginResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, username, ip); err != nil {
			return LoginResult{IssueResult: IssueResult{Failure: limiterFailure(err, deps.RateLimited), Err: err}}
		}
	}

	principal, err := deps.Verify(ctx, username, password)
	if err != nil || principal == "" {
		if deps.Limiter != nil {
			if incErr := deps.Limiter.IncrementLogin(ctx, username, ip); incErr != nil && deps.Warn != nil {
				deps.Warn("login throttle increment failed", "error", incErr)
			}
		}
		return LoginResult{IssueResult: IssueResult{Failure: FailureInvalidCredentials, Err: err}}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, username, ip); err != nil && deps.Warn != nil {
			deps.Warn("login throttle reset failed", "error", err)
		}
	}

	return LoginResult{IssueResult: deps.Issue(ctx, principal), Principal: principal}
}

func limiterFailure(err, rateLimited error) FailureKind {
	if rateLimited != nil && errors.Is(err, rateLimited) {
		return FailureRateLimited
	}
	return FailureStoreUnavailable
}
