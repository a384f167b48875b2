package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix is prepended to every lock key.
	DefaultPrefix = "lock:"
	// DefaultTTL matches the hold time used when callers pass a zero TTL.
	DefaultTTL = 10 * time.Second
	// DefaultOpTimeout bounds a single store round trip.
	DefaultOpTimeout = 500 * time.Millisecond
)

const releaseOwnedScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseOwnedLua = redis.NewScript(releaseOwnedScript)

// Config controls key naming and store timeouts.
type Config struct {
	Prefix    string
	OpTimeout time.Duration
}

// Service issues and releases lock records in Redis.
type Service struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// New returns a Service using cfg, filling zero fields with defaults.
func New(client redis.UniversalClient, cfg Config) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	return &Service{
		redis:     client,
		prefix:    cfg.Prefix,
		opTimeout: cfg.OpTimeout,
	}
}

// Key returns the store key backing the named lock.
func (s *Service) Key(name string) string {
	return s.prefix + name
}

// TryAcquire makes one attempt to create the lock record for name.
// It returns false without error when the lock is already held.
func (s *Service) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	_, ok, err := s.acquire(ctx, name, ttl)
	return ok, err
}

// Release deletes the lock record unconditionally. Releasing a lock whose TTL
// already elapsed is a no-op.
func (s *Service) Release(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.redis.Del(ctx, s.Key(name)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RunExclusive runs fn while holding the named lock. A held lock yields a
// *ContentionError without running fn. The lock is released before
// RunExclusive returns, whether fn succeeds or not.
func (s *Service) RunExclusive(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	_, err := Do(ctx, s, name, ttl, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is the value-returning form of [Service.RunExclusive].
func Do[T any](ctx context.Context, s *Service, name string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	holder, ok, err := s.acquire(ctx, name, ttl)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, &ContentionError{Key: name}
	}
	defer s.releaseOwned(context.WithoutCancel(ctx), name, holder)

	return fn(ctx)
}

// Acquire retries TryAcquire with exponential backoff until the lock is
// obtained or wait elapses. It returns a release func on success.
func (s *Service) Acquire(ctx context.Context, name string, ttl, wait time.Duration) (func(), error) {
	if wait <= 0 {
		holder, ok, err := s.acquire(ctx, name, ttl)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ContentionError{Key: name}
		}
		return s.releaser(ctx, name, holder), nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	holder, err := backoff.Retry(ctx, func() (string, error) {
		holder, ok, err := s.acquire(ctx, name, ttl)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if !ok {
			return "", &ContentionError{Key: name}
		}
		return holder, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(wait))
	if err != nil {
		return nil, err
	}

	return s.releaser(ctx, name, holder), nil
}

func (s *Service) releaser(ctx context.Context, name, holder string) func() {
	ctx = context.WithoutCancel(ctx)
	return func() {
		s.releaseOwned(ctx, name, holder)
	}
}

func (s *Service) acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	holder := ulid.Make().String()

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ok, err := s.redis.SetNX(ctx, s.Key(name), holder, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return holder, ok, nil
}

// releaseOwned deletes the lock only if holder still owns it, so a holder
// whose TTL lapsed cannot delete a successor's lock.
func (s *Service) releaseOwned(ctx context.Context, name, holder string) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_ = releaseOwnedLua.Run(ctx, s.redis, []string{s.Key(name)}, holder).Err()
}
