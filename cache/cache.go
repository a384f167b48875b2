package cache

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goGuard/lock"
)

// ErrStoreUnavailable is returned by write operations when Redis fails or times out.
var ErrStoreUnavailable = errors.New("cache store unavailable")

var nullSentinel = []byte("NULL")

const valueTag byte = 0x01

const scanBatch = 1000

// Deletes KEYS[1] only while it still holds ARGV[1].
const dropIfUnchangedScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var dropIfUnchangedLua = redis.NewScript(dropIfUnchangedScript)

// Loader fetches a value from the origin. found=false means the record does not exist.
type Loader[V any] func(ctx context.Context, key string) (v V, found bool, err error)

// Option customizes a Cache.
type Option func(*options)

type options struct {
	codec    Codec
	observer Observer
	logger   *slog.Logger
}

// WithCodec replaces the default CBOR codec.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithObserver installs an event callback.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache is a read-through cache for one namespace of values of type V.
type Cache[V any] struct {
	redis  redis.UniversalClient
	locks  *lock.Service
	load   Loader[V]
	cfg    Config
	codec  Codec
	notify Observer
	logger *slog.Logger
	group  singleflight.Group
}

type result[V any] struct {
	value V
	found bool
}

type readState uint8

const (
	stateMiss readState = iota
	stateHit
	stateAbsent
)

// New returns a Cache that fills misses from load.
func New[V any](client redis.UniversalClient, locks *lock.Service, load Loader[V], cfg Config, opts ...Option) *Cache[V] {
	o := options{codec: defaultCodec}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.observer == nil {
		o.observer = func(string, Event) {}
	}
	return &Cache[V]{
		redis:  client,
		locks:  locks,
		load:   load,
		cfg:    cfg.withDefaults(),
		codec:  o.codec,
		notify: o.observer,
		logger: o.logger,
	}
}

// Name returns the namespace name.
func (c *Cache[V]) Name() string {
	return c.cfg.Name
}

// Key returns the store key for key.
func (c *Cache[V]) Key(key string) string {
	return c.cfg.Prefix + key
}

// Get returns the cached value for key, filling it from the origin on a miss.
// found=false means the origin has no such record.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	v, st, err := c.read(ctx, key)
	if err != nil {
		c.notify(c.cfg.Name, EventStoreError)
		c.logger.Warn("cache read failed, loading from origin", "cache", c.cfg.Name, "key", key, "error", err)
		return c.shared(ctx, key, func(ctx context.Context) (result[V], error) {
			v, found, err := c.load(ctx, key)
			return result[V]{value: v, found: found}, err
		})
	}
	switch st {
	case stateHit:
		c.notify(c.cfg.Name, EventHit)
		return v, true, nil
	case stateAbsent:
		c.notify(c.cfg.Name, EventSentinelHit)
		return zero, false, nil
	}

	c.notify(c.cfg.Name, EventMiss)
	return c.shared(ctx, key, func(ctx context.Context) (result[V], error) {
		return c.fill(ctx, key)
	})
}

// shared runs fn once per key across concurrent callers in this process.
// The flight is detached from any single caller's cancellation and bounded
// by fillBudget; each caller stops waiting when its own ctx ends.
func (c *Cache[V]) shared(ctx context.Context, key string, fn func(context.Context) (result[V], error)) (V, bool, error) {
	var zero V

	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fillBudget())
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		r := res.Val.(result[V])
		return r.value, r.found, nil
	}
}

func (c *Cache[V]) fillBudget() time.Duration {
	return c.cfg.WaitBudget + c.cfg.LockTTL
}

// Set stores v with the jittered hit TTL.
func (c *Cache[V]) Set(ctx context.Context, key string, v V) error {
	data, err := c.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache %s: encode: %w", c.cfg.Name, err)
	}
	payload := make([]byte, 0, len(data)+1)
	payload = append(payload, valueTag)
	payload = append(payload, data...)
	return c.write(ctx, key, payload, c.hitTTL())
}

// SetAbsent records that the origin has no record for key.
func (c *Cache[V]) SetAbsent(ctx context.Context, key string) error {
	return c.write(ctx, key, nullSentinel, c.cfg.NullTTL)
}

// Invalidate deletes the entry for key.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) error {
	return c.InvalidateAll(ctx, []string{key})
}

// InvalidateAll deletes the entries for keys in one round trip.
func (c *Cache[V]) InvalidateAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InvalidatePrefix deletes every entry whose key starts with prefix, walking
// the keyspace with SCAN. It returns the number of deleted entries.
func (c *Cache[V]) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(c.Key(prefix)) + "*"
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.scan(ctx, cursor, pattern)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.del(ctx, keys)
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Clear deletes every entry in the namespace.
func (c *Cache[V]) Clear(ctx context.Context) (int, error) {
	return c.InvalidatePrefix(ctx, "")
}

func (c *Cache[V]) fill(ctx context.Context, key string) (result[V], error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, func() (result[V], error) {
		r, err := lock.Do(ctx, c.locks, c.lockName(key), c.cfg.LockTTL, func(ctx context.Context) (result[V], error) {
			if r, ok := c.recheck(ctx, key); ok {
				return r, nil
			}
			return c.loadAndStore(ctx, key)
		})
		switch {
		case err == nil:
			return r, nil
		case errors.Is(err, lock.ErrContention):
			if r, ok := c.recheck(ctx, key); ok {
				return r, nil
			}
			return r, err
		case errors.Is(err, lock.ErrUnavailable):
			c.logger.Warn("cache refill lock unavailable, loading unguarded", "cache", c.cfg.Name, "key", key, "error", err)
			r, err := c.loadAndStore(ctx, key)
			if err != nil {
				return r, backoff.Permanent(err)
			}
			return r, nil
		default:
			return r, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(c.cfg.WaitBudget))
}

func (c *Cache[V]) recheck(ctx context.Context, key string) (result[V], bool) {
	v, st, err := c.read(ctx, key)
	if err != nil {
		return result[V]{}, false
	}
	switch st {
	case stateHit:
		return result[V]{value: v, found: true}, true
	case stateAbsent:
		return result[V]{}, true
	default:
		return result[V]{}, false
	}
}

func (c *Cache[V]) loadAndStore(ctx context.Context, key string) (result[V], error) {
	c.notify(c.cfg.Name, EventLoad)
	v, found, err := c.load(ctx, key)
	if err != nil {
		return result[V]{}, err
	}
	if found {
		err = c.Set(ctx, key, v)
	} else {
		err = c.SetAbsent(ctx, key)
	}
	if err != nil {
		c.logger.Warn("cache populate failed", "cache", c.cfg.Name, "key", key, "error", err)
	}
	return result[V]{value: v, found: found}, nil
}

func (c *Cache[V]) read(ctx context.Context, key string) (V, readState, error) {
	var zero V

	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	raw, err := c.redis.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, stateMiss, nil
	}
	if err != nil {
		return zero, stateMiss, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if bytes.Equal(raw, nullSentinel) {
		return zero, stateAbsent, nil
	}

	var v V
	if len(raw) < 1 || raw[0] != valueTag {
		err = errors.New("unknown payload tag")
	} else {
		err = c.codec.Unmarshal(raw[1:], &v)
	}
	if err != nil {
		c.notify(c.cfg.Name, EventDecodeError)
		c.logger.Debug("dropping undecodable cache entry", "cache", c.cfg.Name, "key", key, "error", err)
		_ = dropIfUnchangedLua.Run(ctx, c.redis, []string{c.Key(key)}, raw).Err()
		return zero, stateMiss, nil
	}
	return v, stateHit, nil
}

func (c *Cache[V]) write(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.redis.Set(ctx, c.Key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Cache[V]) scan(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	keys, next, err := c.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return keys, next, nil
}

func (c *Cache[V]) del(ctx context.Context, keys []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	n, err := c.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (c *Cache[V]) lockName(key string) string {
	return "cache:" + c.cfg.Name + ":" + key
}

func (c *Cache[V]) hitTTL() time.Duration {
	if c.cfg.Jitter <= 0 {
		return c.cfg.BaseTTL
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(c.cfg.Jitter)+1))
	if err != nil {
		return c.cfg.BaseTTL
	}
	return c.cfg.BaseTTL + time.Duration(n.Int64())
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
