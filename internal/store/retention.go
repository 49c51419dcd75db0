package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionSweepInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically
// prunes sessions older than the retention window. A non-positive
// retention keeps history forever.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	if retention <= 0 {
		slog.Info("History retention disabled, keeping all sessions")
		return
	}

	ticker := time.NewTicker(retentionSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionSweepInterval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneHistory(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneHistory(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.PruneHistory(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Error("Retention worker failed to prune history", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned old sessions", "count", deleted)
	}
}
