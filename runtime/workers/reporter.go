package workers

import (
	"context"
	"log/slog"
	"time"
)

// OnlineLister exposes the users currently reachable.
type OnlineLister interface {
	Online() []string
}

// ActiveCallCounter exposes the number of ringing or ongoing calls.
type ActiveCallCounter interface {
	ActiveCalls() int
}

// ReporterWorker logs a periodic snapshot of the live state of the server.
type ReporterWorker struct {
	log      *slog.Logger
	users    OnlineLister
	calls    ActiveCallCounter
	interval time.Duration
	started  time.Time
}

func NewReporterWorker(log *slog.Logger, users OnlineLister, calls ActiveCallCounter, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{
		log:      log.With("worker", "reporter"),
		users:    users,
		calls:    calls,
		interval: interval,
		started:  time.Now(),
	}
}

// Run reports every interval until ctx is canceled, with a last report on exit.
func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	w.log.Info("Stats",
		"uptime", time.Since(w.started).Round(time.Second).String(),
		"online_users", len(w.users.Online()),
		"active_calls", w.calls.ActiveCalls(),
	)
}
