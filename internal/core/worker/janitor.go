package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionPruner is implemented by the session repository.
type SessionPruner interface {
	DeleteExpired(ctx context.Context) error
}

// StartSessionJanitor deletes expired sessions on an interval until the
// context is cancelled.
func StartSessionJanitor(ctx context.Context, sessions SessionPruner, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sessions.DeleteExpired(ctx); err != nil {
					slog.Error("failed to prune sessions", "error", err)
				}
			}
		}
	}()
}
