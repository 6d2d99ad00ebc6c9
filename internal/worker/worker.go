// Package worker dispatches queue tasks to the pipeline services and runs
// the periodic reconciliation sweep.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/kitako/incomeproof/internal/ai"
	"github.com/kitako/incomeproof/internal/ingest"
	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/report"
	"github.com/kitako/incomeproof/internal/store"
)

// stuckJobCutoff is how long an AI job may sit in processing before the
// sweep declares it dead.
const stuckJobCutoff = 15 * time.Minute

// Dispatcher routes queue tasks to the service that owns the entity.
type Dispatcher struct {
	processor    *ingest.Processor
	orchestrator *ai.Orchestrator
	finalizer    *report.Finalizer
	aiJobs       store.Jobs
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(processor *ingest.Processor, orchestrator *ai.Orchestrator, finalizer *report.Finalizer, aiJobs store.Jobs) *Dispatcher {
	return &Dispatcher{
		processor:    processor,
		orchestrator: orchestrator,
		finalizer:    finalizer,
		aiJobs:       aiJobs,
	}
}

// Handle is the queue handler. Entity-level failures are recorded on the
// entities themselves and do not bounce the task; only infrastructure errors
// propagate and trigger a redelivery.
func (d *Dispatcher) Handle(ctx context.Context, task *jobs.Task) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Str("entity_id", task.EntityID).
		Msg("processing task")

	switch task.Kind {
	case jobs.TaskProcessUpload:
		return d.processor.Process(ctx, task.UserID, task.EntityID)
	case jobs.TaskCategorizeTransactions, jobs.TaskGenerateSummary:
		return d.orchestrator.Run(ctx, task.UserID, task.EntityID)
	case jobs.TaskGenerateReport:
		return d.finalizer.Finalize(ctx, task.UserID, task.EntityID)
	default:
		return fmt.Errorf("Handle: unknown task kind %q", task.Kind)
	}
}

// RunStuckSweep periodically fails AI jobs stuck in processing, so a crashed
// worker never leaves a job processing forever. Blocks until ctx is done.
func (d *Dispatcher) RunStuckSweep(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.aiJobs.FailStuck(ctx, time.Now().Add(-stuckJobCutoff))
			if err != nil {
				log.Error().Err(err).Msg("stuck job sweep failed")
				continue
			}
			if n > 0 {
				log.Warn().Int("failed", n).Msg("swept stuck jobs")
			}
		}
	}
}
