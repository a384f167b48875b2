package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"
)

// Denylist is the revocation list: tokens invalidated before their natural expiry.
type Denylist struct {
	redis     redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	skew      time.Duration
	now       func() time.Time
}

// NewDenylist returns a Denylist sharing key prefix, skew and clock with cfg.
func NewDenylist(client redis.UniversalClient, cfg Config) *Denylist {
	cfg = cfg.withDefaults()
	return &Denylist{
		redis:     client,
		prefix:    cfg.Prefix,
		opTimeout: cfg.OpTimeout,
		skew:      cfg.ClockSkew,
		now:       cfg.Now,
	}
}

// Key returns the store key for token.
func (d *Denylist) Key(token string) string {
	sum := blake3.Sum256([]byte(token))
	return d.prefix + ":deny:" + hex.EncodeToString(sum[:])
}

// TTL returns how long a revocation record for a token expiring at expiresAt
// must live: the remaining lifetime plus the verifier's expiry skew.
func (d *Denylist) TTL(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(d.now()) + d.skew
}

// Revoke records token as revoked until it would stop validating on its own.
// Tokens already past expiry plus skew need no record.
func (d *Denylist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := d.TTL(expiresAt)
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.opTimeout)
	defer cancel()

	if err := d.redis.SetNX(ctx, d.Key(token), strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether token is on the revocation list. A store failure
// is returned as an error, never as "not revoked".
func (d *Denylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opTimeout)
	defer cancel()

	err := d.redis.Get(ctx, d.Key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

func (d *Denylist) revokePiped(ctx context.Context, pipe redis.Pipeliner, token string, expiresAtMillis int64) {
	expiresAt := time.UnixMilli(expiresAtMillis)
	ttl := d.TTL(expiresAt)
	if ttl <= 0 || token == "" {
		return
	}
	pipe.SetNX(ctx, d.Key(token), strconv.FormatInt(expiresAtMillis, 10), ttl)
}
