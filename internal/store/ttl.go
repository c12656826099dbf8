package store

import (
	"context"
	"log/slog"
	"time"
)

const ttlWorkerInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically removes
// sessions idle longer than ttl. Terminal sessions age out like any other;
// their final decision has already been reported by then.
func StartTTLWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupExpiredSessions(ctx, ttl)
				if err != nil {
					slog.Error("TTL worker failed to cleanup sessions", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("TTL worker removed expired sessions", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
