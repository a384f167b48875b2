package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrContention is returned when a lock is already held by another caller.
	ErrContention = errors.New("lock contention")
	// ErrUnavailable is returned when the backing store cannot be reached or times out.
	ErrUnavailable = errors.New("lock unavailable")
)

// ContentionError carries the key that could not be acquired.
type ContentionError struct {
	Key string
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("lock contention on %q", e.Key)
}

func (e *ContentionError) Unwrap() error {
	return ErrContention
}
