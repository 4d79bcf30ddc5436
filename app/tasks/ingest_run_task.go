package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/lysyi3m/signal-comb/app/ingest"
)

var ErrRunInProgress = errors.New("ingestion run already in progress")

// IngestRunTask runs one ingestion pass unless another is in progress
type IngestRunTask struct {
	Task
	runner   Runner
	running  *atomic.Bool
	complete func(ingest.RunReport)
}

// NewIngestRunTask builds a one-shot run. running guards against two runs of
// the same process overlapping; complete receives the report.
func NewIngestRunTask(runner Runner, running *atomic.Bool, complete func(ingest.RunReport)) *IngestRunTask {
	task := &IngestRunTask{
		Task:     NewTask(TaskTypeIngestRun, "all"),
		runner:   runner,
		running:  running,
		complete: complete,
	}
	// Failures are recorded per adapter and signal, a rerun would re-fetch everything.
	task.MaxRetries = 0
	return task
}

func (t *IngestRunTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.running.CompareAndSwap(false, true) {
		slog.Debug("Ingestion run skipped", "id", t.ID, "reason", ErrRunInProgress)
		return nil
	}
	defer t.running.Store(false)

	report := t.runner.Run(ctx)
	if t.complete != nil {
		t.complete(report)
	}

	totals := report.Totals()
	slog.Info("Task completed",
		"type", string(t.Type),
		"run_id", report.RunID,
		"duration", t.GetDuration(),
		"fetched", totals.Fetched,
		"stored", totals.Stored,
		"duplicates", totals.Duplicates,
		"errors", totals.Errors,
		"failed_adapters", report.FailedAdapters())

	return nil
}
