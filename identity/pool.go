package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/lock"
)

const (
	DefaultPoolSize      = 1000
	DefaultPoolThreshold = 200
	DefaultUrgentBatch   = 100
	DefaultIdentifierFmt = "XH%04d"
	DefaultPoolLockTTL   = 10 * time.Second
	defaultPoolOpTimeout = 500 * time.Millisecond
	defaultPoolKeyPrefix = "gg:idpool"
)

var (
	// ErrPoolEmpty is returned by Next when the pool is empty and an urgent
	// refill could not run because another caller holds the refill lock.
	ErrPoolEmpty = errors.New("identifier pool empty")
	// ErrPoolUnavailable wraps store failures.
	ErrPoolUnavailable = errors.New("identifier pool unavailable")
)

// PoolConfig sizes an IdentifierPool.
type PoolConfig struct {
	// Prefix names the pool's keys: <Prefix>:set, <Prefix>:max and lock <Prefix>.
	Prefix string
	// Format renders a sequence number as an identifier.
	Format string
	// Size is the target pool size after a routine refill.
	Size int
	// Threshold triggers a routine refill when the pool drops below it.
	Threshold int
	// UrgentBatch is generated when Next finds the pool empty.
	UrgentBatch int
	LockTTL     time.Duration
	OpTimeout   time.Duration
	Logger      *slog.Logger
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Prefix == "" {
		c.Prefix = defaultPoolKeyPrefix
	}
	if c.Format == "" {
		c.Format = DefaultIdentifierFmt
	}
	if c.Size <= 0 {
		c.Size = DefaultPoolSize
	}
	if c.Threshold <= 0 || c.Threshold >= c.Size {
		c.Threshold = min(DefaultPoolThreshold, c.Size/2)
	}
	if c.UrgentBatch <= 0 {
		c.UrgentBatch = DefaultUrgentBatch
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultPoolLockTTL
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = defaultPoolOpTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// IdentifierPool hands out unique sequential identifiers in random order.
type IdentifierPool struct {
	redis redis.UniversalClient
	locks *lock.Service
	cfg   PoolConfig
}

// NewIdentifierPool returns a pool. Refills take the named lock cfg.Prefix.
func NewIdentifierPool(client redis.UniversalClient, locks *lock.Service, cfg PoolConfig) *IdentifierPool {
	return &IdentifierPool{
		redis: client,
		locks: locks,
		cfg:   cfg.withDefaults(),
	}
}

func (p *IdentifierPool) setKey() string { return p.cfg.Prefix + ":set" }
func (p *IdentifierPool) maxKey() string { return p.cfg.Prefix + ":max" }

// Next pops one identifier. An empty pool is refilled with UrgentBatch
// identifiers first.
func (p *IdentifierPool) Next(ctx context.Context) (string, error) {
	id, ok, err := p.pop(ctx)
	if err != nil || ok {
		return id, err
	}

	if _, err := p.refill(ctx, p.cfg.UrgentBatch); err != nil && !errors.Is(err, lock.ErrContention) {
		return "", err
	}

	id, ok, err = p.pop(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrPoolEmpty
	}
	return id, nil
}

// Refill tops the pool back up to Size when it has fallen below Threshold.
// It returns the number of identifiers generated; zero when no refill was
// needed or another caller is already refilling.
func (p *IdentifierPool) Refill(ctx context.Context) (int, error) {
	size, err := p.Size(ctx)
	if err != nil {
		return 0, err
	}
	if size >= p.cfg.Threshold {
		return 0, nil
	}

	n, err := p.refill(ctx, p.cfg.Size-size)
	if errors.Is(err, lock.ErrContention) {
		return 0, nil
	}
	return n, err
}

// Size returns the number of identifiers currently pooled.
func (p *IdentifierPool) Size(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	n, err := p.redis.SCard(ctx, p.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	return int(n), nil
}

// MaxSequence returns the highest sequence number generated so far.
func (p *IdentifierPool) MaxSequence(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	n, err := p.redis.Get(ctx, p.maxKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	return n, nil
}

func (p *IdentifierPool) pop(ctx context.Context) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()

	id, err := p.redis.SPop(ctx, p.setKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	return id, true, nil
}

// refill reserves batch sequence numbers with INCRBY, so two refills never
// overlap even if the lock expires mid-refill.
func (p *IdentifierPool) refill(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		return 0, nil
	}
	return lock.Do(ctx, p.locks, p.cfg.Prefix, p.cfg.LockTTL, func(ctx context.Context) (int, error) {
		opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
		defer cancel()

		end, err := p.redis.IncrBy(opCtx, p.maxKey(), int64(batch)).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		start := end - int64(batch) + 1

		members := make([]any, 0, batch)
		for seq := start; seq <= end; seq++ {
			members = append(members, fmt.Sprintf(p.cfg.Format, seq))
		}
		if err := p.redis.SAdd(opCtx, p.setKey(), members...).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}

		p.cfg.Logger.InfoContext(ctx, "identifier pool refilled", "pool", p.cfg.Prefix, "max_sequence", end, "added", batch)
		return batch, nil
	})
}
