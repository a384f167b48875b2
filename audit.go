package goGuard

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
)

// AuditEvent is one session lifecycle event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Emit is called from a background goroutine.
type AuditSink = internalaudit.Sink

type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink        { return internalaudit.NewChannelSink(buffer) }
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }
func NewSlogSink(l *slog.Logger) *SlogSink          { return internalaudit.NewSlogSink(l) }

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventSessionIssued    = "session_issued"
	auditEventSessionEvicted   = "session_evicted"
	auditEventSessionLimit     = "session_limit_reached"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshFailure   = "refresh_failure"
	auditEventLogoutSession    = "logout_session"
	auditEventRevokeAll        = "revoke_all"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, principal, sessionID string, success bool, reason string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Principal: principal,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	})
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

