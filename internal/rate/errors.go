package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter passes its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps store failures and timeouts.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
