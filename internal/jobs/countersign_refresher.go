package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Refresher revalidates a cached list. *countersign.Gate implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CountersignRefresher keeps the scammer list warm in the background so that
// queries rarely pay for a fetch.
type CountersignRefresher struct {
	gate     Refresher
	interval time.Duration
	logger   *slog.Logger
}

// NewCountersignRefresher creates a new refresher.
func NewCountersignRefresher(gate Refresher, interval time.Duration, logger *slog.Logger) *CountersignRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountersignRefresher{
		gate:     gate,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the background refresh loop. It returns when ctx is done.
func (r *CountersignRefresher) Start(ctx context.Context) {
	r.logger.Info("countersign refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("countersign refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *CountersignRefresher) refresh(ctx context.Context) {
	if err := r.gate.Refresh(ctx); err != nil {
		// The gate keeps serving the previous snapshot.
		r.logger.Warn("countersign refresh failed", "error", err)
	}
}
