package goGuard

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/jwt"
)

// Issue opens a new session for principal and returns its token pair. When
// the principal is at MaxSessions the oldest session is evicted, or
// ErrSessionLimitReached is returned if eviction is off.
func (e *Engine) Issue(ctx context.Context, principal string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if principal == "" {
		return TokenPair{}, errors.New("principal must not be empty")
	}

	ctx, span := e.startSpan(ctx, "goGuard.Issue", attribute.String("goguard.principal", principal))
	res := flows.RunIssue(ctx, principal, nil, e.issueDeps())
	endSpan(span, res.Failure)

	return e.finishIssue(ctx, principal, res)
}

// Validate returns the principal of a live access token. Every rejection,
// including a store failure, is an *AuthError that reports only
// "unauthenticated".
func (e *Engine) Validate(ctx context.Context, accessToken string) (string, error) {
	claims, err := e.ValidateClaims(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return claims.Principal(), nil
}

// ValidateClaims is Validate returning the parsed claims.
func (e *Engine) ValidateClaims(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, "goGuard.Validate")
	res := flows.RunValidate(ctx, accessToken, e.validateDeps())
	endSpan(span, res.Failure)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	e.metrics.Inc(validateMetric(res.Failure))

	if res.Failure != flows.FailureNone {
		e.logRejection(ctx, "validate rejected", res.Failure, res.Err, res.Claims)
		return nil, unauthenticated(tokenKindError(res.Failure))
	}
	return res.Claims, nil
}

// Refresh rotates refreshToken into a new pair. Concurrent refreshes of the
// same token yield exactly one success; the others get ErrLockContention or
// an *AuthError. On any failure the presented token stays valid for retry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	ctx, span := e.startSpan(ctx, "goGuard.Refresh")
	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Refresh:  e.refresh,
		Registry: e.registry,
		RunExclusive: func(ctx context.Context, name string, fn func(context.Context) error) error {
			return e.locks.RunExclusive(ctx, name, e.config.Session.RefreshLockTTL, fn)
		},
		Issue: func(ctx context.Context, principal string, rot *flows.Rotation) flows.IssueResult {
			return flows.RunIssue(ctx, principal, rot, e.issueDeps())
		},
	})
	endSpan(span, res.Failure)

	principal := ""
	if res.Claims != nil {
		principal = res.Claims.Principal()
	}

	if res.Failure != flows.FailureNone {
		if res.Failure == flows.FailureLockContention {
			e.metrics.Inc(MetricRefreshContention)
		} else {
			e.metrics.Inc(MetricRefreshFailure)
		}
		e.logRejection(ctx, "refresh rejected", res.Failure, res.Err, res.Claims)
		e.emitAudit(ctx, auditEventRefreshFailure, principal, res.SessionID, false, res.Failure.String(), nil)
		return TokenPair{}, mapFailure(res.Failure, res.Err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, principal, res.SessionID, true, "", map[string]string{
		"rotated_from": res.Claims.SID,
	})
	return e.finishIssue(ctx, principal, res.IssueResult)
}

func (e *Engine) finishIssue(ctx context.Context, principal string, res flows.IssueResult) (TokenPair, error) {
	if res.Failure != flows.FailureNone {
		if res.Failure == flows.FailureSessionLimit {
			e.metrics.Inc(MetricSessionLimitReached)
			e.emitAudit(ctx, auditEventSessionLimit, principal, "", false, res.Failure.String(), nil)
		}
		return TokenPair{}, mapFailure(res.Failure, res.Err)
	}

	e.metrics.Inc(MetricSessionCreated)
	for _, ev := range res.Evicted {
		e.metrics.Inc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, principal, ev.SessionID, true, "session_limit", nil)
	}
	e.emitAudit(ctx, auditEventSessionIssued, principal, res.SessionID, true, "", nil)

	return TokenPair{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
		ExpiresAt:    jwt.ExpiresAt(res.AccessClaims),
	}, nil
}

func (e *Engine) logRejection(ctx context.Context, msg string, kind flows.FailureKind, err error, claims *jwt.Claims) {
	args := []any{"reason", kind.String()}
	if claims != nil {
		args = append(args, "principal", claims.Principal(), "session_id", claims.SID)
	}
	if err != nil {
		args = append(args, "error", err)
	}
	if kind == flows.FailureStoreUnavailable || kind == flows.FailureInternal {
		e.logger.WarnContext(ctx, msg, args...)
		return
	}
	e.logger.DebugContext(ctx, msg, args...)
}

func validateMetric(kind flows.FailureKind) MetricID {
	switch kind {
	case flows.FailureNone:
		return MetricValidateSuccess
	case flows.FailureExpired:
		return MetricValidateExpired
	case flows.FailureRevoked:
		return MetricValidateRevoked
	case flows.FailureSuperseded:
		return MetricValidateSuperseded
	case flows.FailureStoreUnavailable:
		return MetricValidateStoreUnavailable
	default:
		return MetricValidateMalformed
	}
}
