package tasks

import (
	"context"

	"github.com/lysyi3m/signal-comb/app/ingest"
	"github.com/lysyi3m/signal-comb/app/signals"
)

// TaskSchedulerInterface is what main and the API use to drive background work.
//
//	scheduler := NewScheduler(configCache, store, coordinator, SchedulerOptions{...})
//	scheduler.Start()
//	defer scheduler.Stop()
//	taskID, err := scheduler.TriggerIngest()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerIngest() (string, error)
	LastReport() *ingest.RunReport
}

// Runner runs one ingestion pass.
type Runner interface {
	Run(ctx context.Context) ingest.RunReport
}

// SourceRegistry is the source store surface used to pre-register sources
type SourceRegistry interface {
	CreateSource(ctx context.Context, src *signals.Source) error
	GetSourceByKey(ctx context.Context, platform, externalID string) (*signals.Source, error)
	UpdateSource(ctx context.Context, id string, update signals.SourceUpdate) error
}
