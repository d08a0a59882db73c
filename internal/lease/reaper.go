package lease

import (
	"context"
	"log/slog"
	"time"
)

// Reap purges expired records from store every interval until ctx is done.
// Liveness checks never depend on it; it only bounds memory held by
// abandoned leases.
func Reap(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Purge(now); n > 0 {
				logger.Debug("lease: purged expired", slog.Int("count", n))
			}
		}
	}
}
