package session

import (
	"context"
	"log/slog"
	"time"
)

// Janitor deletes idle-expired sessions from a PgStore on a fixed interval.
// Idle timeouts are enforced per request; the janitor collects sessions no
// request ever touches again.
type Janitor struct {
	store    *PgStore
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a session janitor. A non-positive interval falls back
// to five minutes.
func NewJanitor(store *PgStore, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{store: store, interval: interval, logger: logger}
}

// Start begins sweeping in a goroutine. Stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("session janitor started", "interval", j.interval)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Info("session janitor stopped")
				return
			case <-ticker.C:
				removed, err := j.store.DeleteIdleExpired(ctx, time.Now())
				if err != nil {
					j.logger.Error("session cleanup error", "error", err)
					continue
				}
				if removed > 0 {
					j.logger.Info("idle sessions removed", "count", removed)
				}
			}
		}
	}()
}
