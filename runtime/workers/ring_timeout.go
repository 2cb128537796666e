package workers

import (
	"context"
	"log/slog"
	"time"
)

// RingingExpirer is the part of the call state machine the worker drives.
type RingingExpirer interface {
	ExpireRinging(ctx context.Context, now time.Time) int
}

// RingTimeoutWorker periodically turns calls that rang for too long into missed calls.
type RingTimeoutWorker struct {
	log      *slog.Logger
	calls    RingingExpirer
	interval time.Duration
	now      func() time.Time
}

func NewRingTimeoutWorker(log *slog.Logger, calls RingingExpirer, interval time.Duration) *RingTimeoutWorker {
	return &RingTimeoutWorker{
		log:      log.With("worker", "ring_timeout"),
		calls:    calls,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *RingTimeoutWorker) Run(ctx context.Context) error {
	w.log.Info("Starting ring timeout worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := w.calls.ExpireRinging(ctx, w.now()); n > 0 {
				w.log.Debug("Ringing calls expired", "count", n)
			}
		}
	}
}
