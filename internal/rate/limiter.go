package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	OpTimeout        time.Duration
}

// Limiter counts failed logins per username and per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 500 * time.Millisecond
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when either counter for the pair has
// reached MaxLoginAttempts.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		if err := l.checkCounter(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records a failed login attempt for the username and IP.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	var limited bool
	for _, key := range l.keys(username, ip) {
		count, err := l.incrementWithTTL(ctx, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP
// counter is left alone so one good account cannot launder an IP's failures.
func (l *Limiter) ResetLogin(ctx context.Context, username, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
	defer cancel()

	if err := l.redis.Del(ctx, l.userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for username. Missing keys
// return zero.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, error) {
	count, err := l.get(ctx, l.userKey(username))
	return int(count), err
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{l.userKey(username)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.ipKey(ip))
	}
	return keys
}

func (l *Limiter) userKey(username string) string {
	return l.config.Prefix + ":rl:u:" + username
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":rl:ip:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.get(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) get(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
	defer cancel()

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return max(count, 0), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
	defer cancel()

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.LoginCooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
