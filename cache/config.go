package cache

import (
	"time"
)

const (
	DefaultBaseTTL    = time.Hour
	DefaultJitter     = 5 * time.Minute
	DefaultNullTTL    = time.Minute
	DefaultLockTTL    = 5 * time.Second
	DefaultWaitBudget = 3 * time.Second
	DefaultOpTimeout  = 500 * time.Millisecond
)

// Config tunes a single cache namespace.
type Config struct {
	// Name identifies the namespace in keys, lock names and observer events.
	Name string
	// Prefix overrides the key prefix, which defaults to "cache:<Name>:".
	Prefix string

	BaseTTL time.Duration
	// Jitter is the upper bound of the random extension added to BaseTTL.
	// Negative disables jitter.
	Jitter  time.Duration
	NullTTL time.Duration

	LockTTL time.Duration
	// WaitBudget bounds how long a caller that lost the refill lock polls
	// for the winner's result.
	WaitBudget time.Duration
	OpTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "cache:" + c.Name + ":"
	}
	if c.BaseTTL <= 0 {
		c.BaseTTL = DefaultBaseTTL
	}
	if c.Jitter == 0 {
		c.Jitter = DefaultJitter
	}
	if c.NullTTL <= 0 {
		c.NullTTL = DefaultNullTTL
	}
	if c.NullTTL >= c.BaseTTL {
		c.NullTTL = c.BaseTTL / 2
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.WaitBudget <= 0 {
		c.WaitBudget = DefaultWaitBudget
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}
