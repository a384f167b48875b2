package goGuard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goGuard/internal/flows"
)

// Revoke ends every session of principal: each live access token goes on the
// revocation list and the session list and refresh records are deleted. It
// is serialized with Issue for the same principal, so no session issued
// concurrently survives it.
func (e *Engine) Revoke(ctx context.Context, principal string, reason RevokeReason) error {
	if err := e.ready(); err != nil {
		return err
	}
	if principal == "" {
		return errors.New("principal must not be empty")
	}

	ctx, span := e.startSpan(ctx, "goGuard.Revoke",
		attribute.String("goguard.principal", principal),
		attribute.String("goguard.reason", string(reason)),
	)
	res := flows.RunRevoke(ctx, principal, e.registry)
	endSpan(span, res.Failure)

	if res.Failure != flows.FailureNone {
		e.logger.WarnContext(ctx, "revoke failed", "principal", principal, "reason", string(reason), "error", res.Err)
		e.emitAudit(ctx, auditEventRevokeAll, principal, "", false, string(reason), nil)
		return mapFailure(res.Failure, res.Err)
	}

	e.metrics.Inc(MetricRevokeAll)
	e.logger.InfoContext(ctx, "sessions revoked", "principal", principal, "reason", string(reason), "count", res.Revoked)
	e.emitAudit(ctx, auditEventRevokeAll, principal, "", true, string(reason), map[string]string{
		"revoked": strconv.Itoa(res.Revoked),
	})
	return nil
}

// Logout ends the single session accessToken belongs to. An invalid token
// yields an *AuthError; store failures yield ErrStoreUnavailable.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	ctx, span := e.startSpan(ctx, "goGuard.Logout")
	res := flows.RunLogout(ctx, accessToken, e.validateDeps())
	endSpan(span, res.Failure)

	if res.Failure != flows.FailureNone {
		e.logRejection(ctx, "logout rejected", res.Failure, res.Err, res.Claims)
		return mapFailure(res.Failure, res.Err)
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, res.Claims.Principal(), res.Claims.SID, res.Removed, "", nil)
	return nil
}

// LogoutAll validates accessToken and revokes every session of its principal.
func (e *Engine) LogoutAll(ctx context.Context, accessToken string) error {
	principal, err := e.Validate(ctx, accessToken)
	if err != nil {
		return err
	}
	return e.Revoke(ctx, principal, RevokeUserLogoutAll)
}

// ActiveSessions lists the live sessions of principal, oldest first.
func (e *Engine) ActiveSessions(ctx context.Context, principal string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	entries, err := e.registry.Sessions(ctx, principal)
	if err != nil {
		return nil, mapFailure(flows.FailureStoreUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(entries))
	for _, ent := range entries {
		out = append(out, SessionInfo{
			SessionID: ent.SessionID,
			CreatedAt: time.UnixMilli(ent.CreatedAt),
			ExpiresAt: time.UnixMilli(ent.ExpiresAt),
		})
	}
	return out, nil
}
