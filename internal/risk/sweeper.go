package risk

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper invokes the engine's cleanup on a fixed interval until its
// context is cancelled. The loop is a single goroutine, so sweeps never
// overlap.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a cleanup sweeper. A non-positive interval falls back
// to five minutes.
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Start begins sweeping in a goroutine. Stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("risk sweeper started", "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("risk sweeper stopped")
				return
			case <-ticker.C:
				if err := s.engine.Cleanup(ctx); err != nil {
					s.logger.Error("risk cleanup error", "error", err)
				}
			}
		}
	}()
}
