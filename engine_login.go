package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// Login verifies username and password with the configured CredentialVerifier
// and issues a session for the returned principal. Failed attempts count
// against the per-username and per-IP throttle; the client IP is read from
// ctx (see WithClientIP).
func (e *Engine) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if e.verifier == nil {
		return TokenPair{}, errors.New("credential verifier not configured")
	}

	deps := flows.LoginDeps{
		Verify:      e.verifier.Verify,
		RateLimited: rate.ErrRateLimited,
		Issue: func(ctx context.Context, principal string) flows.IssueResult {
			return flows.RunIssue(ctx, principal, nil, e.issueDeps())
		},
		Warn: func(msg string, args ...any) {
			e.logger.WarnContext(ctx, msg, args...)
		},
	}
	if e.limiter != nil {
		deps.Limiter = e.limiter
	}

	ctx, span := e.startSpan(ctx, "goGuard.Login")
	res := flows.RunLogin(ctx, username, password, ClientIPFromContext(ctx), deps)
	endSpan(span, res.Failure)

	switch res.Failure {
	case flows.FailureNone:
		e.metrics.Inc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, res.Principal, res.SessionID, true, "", nil)
		return e.finishIssue(ctx, res.Principal, res.IssueResult)
	case flows.FailureRateLimited:
		e.metrics.Inc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, "", "", false, res.Failure.String(), map[string]string{"username": username})
	default:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, res.Principal, "", false, res.Failure.String(), map[string]string{"username": username})
		if res.Failure == flows.FailureStoreUnavailable {
			e.logger.WarnContext(ctx, "login store failure", "error", res.Err)
		}
	}
	return TokenPair{}, mapFailure(res.Failure, res.Err)
}
