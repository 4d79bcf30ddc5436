package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/signal-comb/app/adapters"
	"github.com/lysyi3m/signal-comb/app/ingest"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultInterval    = 15 * time.Minute
	defaultTaskTimeout = 5 * time.Minute
	maxRetryDelay      = 30 * time.Second
	taskQueueSize      = 300

	// startupWorkerID tags tasks executed inline by the startup goroutine.
	startupWorkerID = -1
)

type SchedulerOptions struct {
	Interval    time.Duration
	WorkerCount int
	TaskTimeout time.Duration
}

// Scheduler runs tasks on a worker pool and queues ingestion runs on a ticker
type Scheduler struct {
	configCache *adapters.ConfigCache
	registry    SourceRegistry
	runner      Runner
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	running     atomic.Bool
	lastReport  atomic.Pointer[ingest.RunReport]
}

// NewScheduler creates a scheduler; zero options fall back to defaults
func NewScheduler(configCache *adapters.ConfigCache, registry SourceRegistry, runner Runner, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		configCache: configCache,
		registry:    registry,
		runner:      runner,
		interval:    opts.Interval,
		workerCount: opts.WorkerCount,
		taskTimeout: opts.TaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

// Start launches the workers, syncs verified sources and queues the first run
func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueIngestRun()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers to exit
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerIngest queues an ingestion run and returns its task id.
func (s *Scheduler) TriggerIngest() (string, error) {
	if s.running.Load() {
		return "", ErrRunInProgress
	}

	task := NewIngestRunTask(s.runner, &s.running, s.recordReport)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// LastReport returns the report of the most recent finished run, or nil.
func (s *Scheduler) LastReport() *ingest.RunReport {
	return s.lastReport.Load()
}

func (s *Scheduler) recordReport(report ingest.RunReport) {
	s.lastReport.Store(&report)
}

func (s *Scheduler) enqueueStartupTasks() {
	s.syncSources()
	s.enqueueIngestRun()
}

// syncSources registers verified sources inline, before the first ingestion
// run, so that run already scores them as verified.
func (s *Scheduler) syncSources() {
	configs := s.configCache.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(configs))

	for _, config := range configs {
		if len(config.Verified) == 0 {
			continue
		}
		s.executeTask(startupWorkerID, NewSyncSourcesTask(config, s.registry))
	}
}

func (s *Scheduler) enqueueIngestRun() {
	if s.running.Load() {
		slog.Debug("Ingestion run still in progress, skipping tick")
		return
	}

	if err := s.EnqueueTask(NewIngestRunTask(s.runner, &s.running, s.recordReport)); err != nil {
		slog.Warn("Failed to enqueue IngestRunTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
