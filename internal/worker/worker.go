package worker

import (
	"context"
	"time"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/services"
	"github.com/aulagpt/aulagpt-backend/internal/utils"
)

const (
	DefaultPollInterval = 5 * time.Second

	// Extra pause after an iteration-level failure so a broken dependency
	// is not hammered in a tight loop.
	failureBackoff = 10 * time.Second
)

// Worker drains pending queries and keeps course files synchronized. One
// instance is expected; query ordering is only guaranteed within it.
type Worker struct {
	log       *logger.Logger
	queryRepo repos.QueryRepo
	lifecycle services.QueryLifecycle
	sync      services.FileSyncService
	interval  time.Duration
}

func New(
	baseLog *logger.Logger,
	queryRepo repos.QueryRepo,
	lifecycle services.QueryLifecycle,
	sync services.FileSyncService,
) *Worker {
	log := baseLog.With("component", "Worker")
	return &Worker{
		log:       log,
		queryRepo: queryRepo,
		lifecycle: lifecycle,
		sync:      sync,
		interval:  utils.GetEnvAsDuration("WORKER_POLL_INTERVAL", DefaultPollInterval, log),
	}
}

// Run loops until ctx is cancelled. Every failure is caught and logged; the
// loop itself never exits on error.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("Worker started", "interval", w.interval.String())

	for {
		iterationFailed := w.runOnce(ctx)

		wait := w.interval
		if iterationFailed {
			wait += failureBackoff
		}
		select {
		case <-ctx.Done():
			w.log.Info("Worker stopping")
			return
		case <-time.After(wait):
		}
	}
}

// runOnce reports whether the iteration failed at the batch level. Per-query
// failures are terminal states on the query itself, not iteration failures.
func (w *Worker) runOnce(ctx context.Context) bool {
	pending, err := w.queryRepo.ListPending(ctx, nil)
	if err != nil {
		w.log.Error("Could not list pending queries", "error", err)
		return true
	}

	for _, query := range pending {
		if ctx.Err() != nil {
			return false
		}
		if err := w.lifecycle.Process(ctx, query.ID); err != nil {
			// Process marks the query itself; this failure means the
			// attempt could not even record an outcome.
			w.log.Error("Query processing attempt failed", "query_id", query.ID, "error", err)
		}
	}

	if w.sync != nil {
		w.sync.SyncAll(ctx)
	}
	return false
}
