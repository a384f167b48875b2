package goGuard

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/lock"
	"github.com/MrEthical07/goGuard/session"
)

const tracerName = "github.com/MrEthical07/goGuard"

// Builder collects Engine dependencies. A Builder builds at most one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	verifier  CredentialVerifier
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time
	tracing   trace.TracerProvider

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared store. Any go-redis client works, including
// cluster and failover clients.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialVerifier enables Login.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the sink for audit events. Audit.Enabled must also be true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for token timestamps and session expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithTracerProvider sets the provider for operation spans. The global
// provider is used otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracing = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := b.tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- TOKENS --------
	access, refresh, err := jwt.NewPair(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		Secret:        []byte(cfg.JWT.Secret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        ClockSkew,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSIONS --------
	locks := lock.New(b.redis, lock.Config{
		Prefix:    cfg.Session.RedisPrefix + ":" + cfg.Store.LockPrefix,
		OpTimeout: cfg.Store.OpTimeout,
	})
	sessCfg := session.Config{
		Prefix:     cfg.Session.RedisPrefix,
		SessionTTL: cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		ClockSkew:  ClockSkew,
		LockTTL:    cfg.Session.LockTTL,
		LockWait:   cfg.Session.LockWait,
		OpTimeout:  cfg.Store.OpTimeout,
		Now:        now,
	}
	denylist := session.NewDenylist(b.redis, sessCfg)
	registry := session.NewRegistry(b.redis, locks, denylist, sessCfg)

	engine := &Engine{
		config:   cfg,
		redis:    b.redis,
		locks:    locks,
		denylist: denylist,
		registry: registry,
		access:   access,
		refresh:  refresh,
		verifier: b.verifier,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
		now:      now,
	}

	if cfg.Security.EnableLoginThrottle {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Session.RedisPrefix,
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginCooldown:    cfg.Security.LoginCooldown,
			OpTimeout:        cfg.Store.OpTimeout,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
