package goGuard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/cache"
)

// ClockSkew is the tolerance applied to token expiry comparisons.
const ClockSkew = 30 * time.Second

// Config holds every Engine setting. Field tags follow the koanf keys used by
// internal/confloader.
type Config struct {
	JWT      JWTConfig      `koanf:"jwt"`
	Session  SessionConfig  `koanf:"session"`
	Store    StoreConfig    `koanf:"store"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Audit    AuditConfig    `koanf:"audit"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Access and refresh keys are both
// derived from Secret.
type JWTConfig struct {
	SigningMethod string        `koanf:"signing_method"` // "hs256" (default) or "ed25519"
	Secret        string        `koanf:"secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	KeyID         string        `koanf:"key_id"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the session registry.
type SessionConfig struct {
	RedisPrefix string `koanf:"redis_prefix"`
	// MaxSessions bounds concurrent sessions per principal; zero is unlimited.
	MaxSessions int  `koanf:"max_sessions"`
	EvictOldest bool `koanf:"evict_oldest"`
	// LockTTL bounds how long a principal lock may be held.
	LockTTL time.Duration `koanf:"lock_ttl"`
	// LockWait bounds how long Register and RevokeAll wait for the principal lock.
	LockWait time.Duration `koanf:"lock_wait"`
	// RefreshLockTTL bounds a single rotation.
	RefreshLockTTL time.Duration `koanf:"refresh_lock_ttl"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures access to the shared store.
type StoreConfig struct {
	// OpTimeout bounds every Redis round trip.
	OpTimeout  time.Duration `koanf:"op_timeout"`
	LockPrefix string        `koanf:"lock_prefix"`
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig holds defaults for keyed caches built with Config.CacheConfigFor.
type CacheConfig struct {
	BaseTTL    time.Duration `koanf:"base_ttl"`
	Jitter     time.Duration `koanf:"jitter"`
	NullTTL    time.Duration `koanf:"null_ttl"`
	LockTTL    time.Duration `koanf:"lock_ttl"`
	WaitBudget time.Duration `koanf:"wait_budget"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures the failed-login throttle.
type SecurityConfig struct {
	EnableLoginThrottle bool          `koanf:"enable_login_throttle"`
	EnableIPThrottle    bool          `koanf:"enable_ip_throttle"`
	MaxLoginAttempts    int           `koanf:"max_login_attempts"`
	LoginCooldown       time.Duration `koanf:"login_cooldown"`
}

/*
====================================
AUDIT / METRICS / LOGGING
====================================
*/

// AuditConfig configures asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// LoggingConfig is read by binaries that build the Engine logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" (default) or "text"
}

// DefaultConfig returns the baseline configuration. JWT.Secret must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "goGuard",
		},
		Session: SessionConfig{
			RedisPrefix:    "gg",
			MaxSessions:    5,
			EvictOldest:    true,
			LockTTL:        5 * time.Second,
			LockWait:       2 * time.Second,
			RefreshLockTTL: 10 * time.Second,
		},
		Store: StoreConfig{
			OpTimeout:  500 * time.Millisecond,
			LockPrefix: "lock:",
		},
		Cache: CacheConfig{
			BaseTTL:    cache.DefaultBaseTTL,
			Jitter:     cache.DefaultJitter,
			NullTTL:    cache.DefaultNullTTL,
			LockTTL:    cache.DefaultLockTTL,
			WaitBudget: cache.DefaultWaitBudget,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			EnableIPThrottle:    true,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "ed25519":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.Secret) < 16 {
		return errors.New("JWT Secret must be at least 16 bytes")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.MaxSessions < 0 {
		return errors.New("Session MaxSessions must be >= 0")
	}
	if c.Session.LockTTL <= 0 || c.Session.RefreshLockTTL <= 0 {
		return errors.New("Session lock TTLs must be > 0")
	}
	if c.Session.LockWait < 0 {
		return errors.New("Session LockWait must be >= 0")
	}

	// Store
	if c.Store.OpTimeout <= 0 {
		return errors.New("Store OpTimeout must be > 0")
	}

	// Cache
	if c.Cache.BaseTTL <= 0 {
		return errors.New("Cache BaseTTL must be > 0")
	}
	if c.Cache.NullTTL <= 0 || c.Cache.NullTTL >= c.Cache.BaseTTL {
		return errors.New("Cache NullTTL must be > 0 and shorter than BaseTTL")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

// CacheConfigFor returns the keyed cache configuration for namespace name.
func (c *Config) CacheConfigFor(name string) cache.Config {
	return cache.Config{
		Name:       name,
		Prefix:     c.Session.RedisPrefix + ":cache:" + name + ":",
		BaseTTL:    c.Cache.BaseTTL,
		Jitter:     c.Cache.Jitter,
		NullTTL:    c.Cache.NullTTL,
		LockTTL:    c.Cache.LockTTL,
		WaitBudget: c.Cache.WaitBudget,
		OpTimeout:  c.Store.OpTimeout,
	}
}
