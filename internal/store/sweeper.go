package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexuslabs/nexus-voice/internal/shared"
)

const (
	defaultSweepInterval = time.Hour
	sweepRetries         = 3
)

// StartEvictionWorker runs a background goroutine that periodically
// removes context references that have not been touched within horizon.
// This is the only destructive operation on the reference index besides
// a full reset.
func StartEvictionWorker(ctx context.Context, repo Repository, interval, horizon time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Reference eviction worker started", "interval", interval, "horizon", horizon)

		for {
			select {
			case <-ticker.C:
				sweepStaleReferences(ctx, repo, horizon)
			case <-ctx.Done():
				slog.Info("Reference eviction worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepStaleReferences(ctx context.Context, repo Repository, horizon time.Duration) {
	var deleted int64
	var err error

	// A sweep can land while a burst of upserts holds the write lock;
	// back off briefly instead of skipping a whole interval.
	for attempt := 0; attempt < sweepRetries; attempt++ {
		deleted, err = repo.EvictStaleReferences(ctx, horizon)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			break
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		slog.Error("Eviction sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Evicted stale context references", "count", deleted, "horizon", horizon)
	}
}
