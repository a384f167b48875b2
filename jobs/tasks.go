package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/identity"
)

// WarmUpTask reloads the directory entries of the users returned by ids.
func WarmUpTask(dir *identity.CachedDirectory, ids func(context.Context) ([]string, error), interval time.Duration, logger *slog.Logger) Task {
	if logger == nil {
		logger = slog.Default()
	}
	return Task{
		Name:      "directory-warmup",
		Interval:  interval,
		Immediate: true,
		Run: func(ctx context.Context) error {
			list, err := ids(ctx)
			if err != nil {
				return err
			}
			n, err := dir.WarmUp(ctx, list)
			logger.InfoContext(ctx, "directory warmed", "users", n, "requested", len(list))
			return err
		},
	}
}

// PoolRefillTask tops up the identifier pool. Runs that find the refill lock
// held by another node do nothing.
func PoolRefillTask(pool *identity.IdentifierPool, interval time.Duration, logger *slog.Logger) Task {
	if logger == nil {
		logger = slog.Default()
	}
	return Task{
		Name:      "idpool-refill",
		Interval:  interval,
		Immediate: true,
		Run: func(ctx context.Context) error {
			n, err := pool.Refill(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.InfoContext(ctx, "identifier pool refilled", "added", n)
			}
			return nil
		},
	}
}
