package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes sessions that have been idle for longer than a cutoff
type Sweeper interface {
	SweepIdle(ctx context.Context, idle time.Duration) (int, error)
}

// StartSessionSweeper runs the sweep on schedule until the returned cron is stopped
func StartSessionSweeper(schedule string, idle time.Duration, sweeper Sweeper) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(schedule, func() { runSweep(sweeper, idle) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("session sweeper started", "schedule", schedule, "idle", idle)
	return c, nil
}

func runSweep(sweeper Sweeper, idle time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := sweeper.SweepIdle(ctx, idle)
	if err != nil {
		slog.Error("session sweep failed", "error", err, "removed", removed)
		return
	}
	if removed > 0 {
		slog.Info("idle sessions swept", "removed", removed)
	}
}
