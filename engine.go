package goGuard

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal"
	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/lock"
	"github.com/MrEthical07/goGuard/session"
)

// Engine is the token authority. It is safe for concurrent use; build it
// once with [Builder] and share it.
type Engine struct {
	config   Config
	redis    redis.UniversalClient
	locks    *lock.Service
	denylist *session.Denylist
	registry *session.Registry
	access   *jwt.Manager
	refresh  *jwt.Manager
	limiter  *rate.Limiter
	verifier CredentialVerifier
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	closed   atomic.Bool
}

// Close stops the audit relay after draining it. The Redis client is owned
// by the caller and left open.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.audit.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// Config returns a copy of the Engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Locks returns the mutex service the Engine uses, for building keyed caches
// and background jobs that share its key prefix.
func (e *Engine) Locks() *lock.Service {
	return e.locks
}

// Redis returns the shared store client.
func (e *Engine) Redis() redis.UniversalClient {
	return e.redis
}

// Logger returns the Engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// MetricsSnapshot returns a point-in-time copy of the Engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// CacheObserver returns a cache.Observer that feeds cache events into the
// Engine counters.
func (e *Engine) CacheObserver() cache.Observer {
	return func(_ string, ev cache.Event) {
		switch ev {
		case cache.EventHit:
			e.metrics.Inc(MetricCacheHit)
		case cache.EventSentinelHit:
			e.metrics.Inc(MetricCacheSentinelHit)
		case cache.EventMiss:
			e.metrics.Inc(MetricCacheMiss)
		case cache.EventLoad:
			e.metrics.Inc(MetricCacheLoad)
		case cache.EventDecodeError:
			e.metrics.Inc(MetricCacheDecodeError)
		case cache.EventStoreError:
			e.metrics.Inc(MetricCacheStoreError)
		}
	}
}

// NewCache builds a keyed cache in the Engine's namespace, sharing its lock
// service, counters and logger.
func NewCache[V any](e *Engine, name string, load cache.Loader[V], opts ...cache.Option) *cache.Cache[V] {
	opts = append([]cache.Option{
		cache.WithObserver(e.CacheObserver()),
		cache.WithLogger(e.logger.With("cache", name)),
	}, opts...)
	return cache.New(e.redis, e.locks, load, e.config.CacheConfigFor(name), opts...)
}

// Health reports store round-trip latency.
func (e *Engine) Health(ctx context.Context) (time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	d, err := e.registry.Ping(ctx)
	if err != nil {
		return 0, mapFailure(flows.FailureStoreUnavailable, err)
	}
	return d, nil
}

// ActivePrincipals estimates the number of principals holding a session list.
func (e *Engine) ActivePrincipals(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.registry.EstimateActivePrincipals(ctx)
	if err != nil {
		return 0, mapFailure(flows.FailureStoreUnavailable, err)
	}
	return n, nil
}

func (e *Engine) issueDeps() flows.IssueDeps {
	return flows.IssueDeps{
		NewSessionID: internal.MustSessionID,
		Now:          e.now,
		Access:       e.access,
		Refresh:      e.refresh,
		Registry:     e.registry,
		MaxSessions:  e.config.Session.MaxSessions,
		Evict:        e.config.Session.EvictOldest,
	}
}

func (e *Engine) validateDeps() flows.ValidateDeps {
	return flows.ValidateDeps{
		Access:     e.access,
		Revocation: e.denylist,
		Registry:   e.registry,
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, kind flows.FailureKind) {
	if kind != flows.FailureNone {
		span.SetStatus(codes.Error, kind.String())
		span.SetAttributes(attribute.String("goguard.failure", kind.String()))
	}
	span.End()
}
