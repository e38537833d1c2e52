package engine

import (
	"context"
	"time"
)

const pruneTimeout = 30 * time.Second

// pruneLoop removes old history once at start and then on every tick.
func (e *Engine) pruneLoop(ctx context.Context) {
	defer e.wg.Done()

	e.pruneOnce(ctx)

	ticker := time.NewTicker(e.pruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pruneOnce(ctx)
		}
	}
}

// pruneOnce deletes history older than the retention period.
func (e *Engine) pruneOnce(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	deleted, err := e.deps.History.PruneHistory(pruneCtx, e.retention)
	if err != nil {
		if ctx.Err() == nil {
			e.deps.Logger.Error("pruning history failed", "error", err)
		}
		return
	}
	if deleted > 0 {
		e.deps.Logger.Info("pruned controller history", "deleted", deleted, "retention", e.retention.String())
	}
}
