package session

import "time"

// Entry is one live session in a principal's registry list.
type Entry struct {
	SessionID   string
	AccessToken string
	// CreatedAt and ExpiresAt are unix milliseconds. ExpiresAt is the access
	// token expiry and bounds how long the entry counts toward the limit.
	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the entry's access token lifetime has elapsed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt <= now.UnixMilli()
}

// Registration describes a session to add with [Registry.Register].
type Registration struct {
	Entry Entry

	// MaxSessions bounds the list length; zero or negative means unlimited.
	MaxSessions int
	// Evict selects evict-oldest over failing with ErrSessionLimitReached.
	Evict bool

	// RefreshToken is stored under Entry.SessionID in the same write as the list.
	RefreshToken     string
	RefreshExpiresAt int64

	// Replaces names a session retired by rotation. Its access token is revoked
	// and its refresh record removed in the same write.
	Replaces string
	// ExpectRefresh, when set with Replaces, must equal the refresh token on
	// record for the replaced session or Register fails with ErrSuperseded.
	ExpectRefresh string
}

type refreshRecord struct {
	Token     string
	ExpiresAt int64
}
