package ingest

import (
	"log/slog"

	"github.com/lysyi3m/signal-comb/app/signals"
)

// EventSink receives the observability events of a run.
type EventSink interface {
	RunStarted(runID string, adapters int)
	SourceCreated(runID, adapter string, source *signals.Source)
	SignalStored(runID, adapter string, index int, sig *signals.Signal)
	SignalDuplicate(runID, adapter string, index int, fingerprint string)
	SignalFailed(failure SignalFailure)
	TrustChanged(change TrustChange)
	AdapterFailed(runID, adapter string, err error)
	AdapterCompleted(runID string, summary AdapterSummary)
	RunCompleted(report RunReport)
}

// SlogSink logs ingestion events with a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) RunStarted(runID string, adapters int) {
	s.logger.Info("Ingestion run started", "run_id", runID, "adapters", adapters)
}

func (s *SlogSink) SourceCreated(runID, adapter string, source *signals.Source) {
	s.logger.Info("Source created",
		"run_id", runID,
		"adapter", adapter,
		"source_id", source.ID,
		"platform", source.Platform,
		"identifier", source.ExternalIdentifier)
}

func (s *SlogSink) SignalStored(runID, adapter string, index int, sig *signals.Signal) {
	s.logger.Debug("Signal stored",
		"run_id", runID,
		"adapter", adapter,
		"index", index,
		"signal_id", sig.ID,
		"type", sig.Category,
		"trust_score", sig.TrustScore,
		"fingerprint", sig.Fingerprint)
}

func (s *SlogSink) SignalDuplicate(runID, adapter string, index int, fingerprint string) {
	s.logger.Debug("Duplicate signal skipped",
		"run_id", runID,
		"adapter", adapter,
		"index", index,
		"fingerprint", fingerprint)
}

func (s *SlogSink) SignalFailed(f SignalFailure) {
	s.logger.Error("Signal processing failed",
		"run_id", f.RunID,
		"adapter", f.Adapter,
		"index", f.Index,
		"kind", f.Kind,
		"error", f.Err,
		"title", f.Raw.Title,
		"category", f.Raw.Category,
		"source", f.Raw.SourceName,
		"published", f.Raw.Published,
		"link", f.Raw.Link)
}

func (s *SlogSink) TrustChanged(c TrustChange) {
	s.logger.Info("Trust score updated",
		"run_id", c.RunID,
		"adapter", c.Adapter,
		"source_id", c.SourceID,
		"source", c.Source,
		"from", c.From,
		"to", c.To,
		"raw", c.Raw,
		"breakdown", c.Breakdown)
}

func (s *SlogSink) AdapterFailed(runID, adapter string, err error) {
	s.logger.Error("Adapter failed",
		"run_id", runID,
		"adapter", adapter,
		"kind", signals.ErrorKind(err),
		"error", err)
}

func (s *SlogSink) AdapterCompleted(runID string, summary AdapterSummary) {
	s.logger.Info("Adapter processed",
		"run_id", runID,
		"adapter", summary.Adapter,
		"fetched", summary.Fetched,
		"stored", summary.Stored,
		"duplicates", summary.Duplicates,
		"errors", summary.Errors,
		"failed", summary.Failed())
}

func (s *SlogSink) RunCompleted(report RunReport) {
	totals := report.Totals()
	s.logger.Info("Ingestion run completed",
		"run_id", report.RunID,
		"adapters", len(report.Adapters),
		"failed_adapters", report.FailedAdapters(),
		"fetched", totals.Fetched,
		"stored", totals.Stored,
		"duplicates", totals.Duplicates,
		"errors", totals.Errors,
		"duration", report.Duration())
}
