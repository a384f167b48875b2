package session

import "time"

const (
	DefaultPrefix     = "gg"
	DefaultLockTTL    = 5 * time.Second
	DefaultLockWait   = 2 * time.Second
	DefaultOpTimeout  = 500 * time.Millisecond
	DefaultSessionTTL = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultClockSkew  = 30 * time.Second
)

// Config controls key naming, lifetimes and timeouts for the registry and denylist.
type Config struct {
	Prefix string

	// SessionTTL is the access token lifetime; a principal's list expires
	// SessionTTL after its last registration.
	SessionTTL time.Duration
	RefreshTTL time.Duration

	// ClockSkew extends revocation TTLs to cover the verifier's expiry leeway.
	ClockSkew time.Duration

	LockTTL   time.Duration
	LockWait  time.Duration
	OpTimeout time.Duration

	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.LockWait < 0 {
		c.LockWait = 0
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
