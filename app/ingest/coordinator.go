package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/signal-comb/app/dedup"
	"github.com/lysyi3m/signal-comb/app/signals"
	"github.com/lysyi3m/signal-comb/app/trust"
	"golang.org/x/sync/errgroup"
)

const trustChangeReason = "ingestion score"

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds how many adapters run at once. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = max(n, 1)
	}
}

// WithTrustHistory appends a trust history row whenever ingestion changes a source's score.
func WithTrustHistory(enabled bool) Option {
	return func(c *Coordinator) {
		c.recordHistory = enabled
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator runs one ingestion pass across a fixed set of adapters.
type Coordinator struct {
	store         signals.Store
	adapters      []signals.Adapter
	sink          EventSink
	trust         *trust.Engine
	dedup         *dedup.Engine
	concurrency   int
	recordHistory bool
	now           func() time.Time
}

// NewCoordinator creates a coordinator over store and adapters that reports to sink.
func NewCoordinator(store signals.Store, adapters []signals.Adapter, sink EventSink, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		adapters:    adapters,
		sink:        sink,
		trust:       trust.NewEngine(),
		dedup:       dedup.NewEngine(store),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Adapters returns the number of configured adapters.
func (c *Coordinator) Adapters() int {
	return len(c.adapters)
}

// Run processes every adapter. Adapter and signal failures are recorded in
// the report and the event sink; Run itself never fails.
func (c *Coordinator) Run(ctx context.Context) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
		Adapters:  make([]AdapterSummary, len(c.adapters)),
	}
	c.sink.RunStarted(report.RunID, len(c.adapters))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, adapter := range c.adapters {
		g.Go(func() error {
			report.Adapters[i] = c.runAdapter(ctx, report.RunID, adapter)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = c.now()
	c.sink.RunCompleted(report)

	return report
}

func (c *Coordinator) runAdapter(ctx context.Context, runID string, adapter signals.Adapter) (summary AdapterSummary) {
	defer func() {
		if p := recover(); p != nil {
			err := &signals.FetchError{Adapter: summary.Adapter, Err: fmt.Errorf("adapter panicked: %v", p)}
			summary.FetchError = err.Error()
			c.sink.AdapterFailed(runID, summary.Adapter, err)
		}
		c.sink.AdapterCompleted(runID, summary)
	}()

	summary.Adapter = adapter.Name()

	raws, err := adapter.FetchSignals(ctx)
	if err != nil {
		var fetchErr *signals.FetchError
		if !errors.As(err, &fetchErr) {
			err = &signals.FetchError{Adapter: summary.Adapter, Err: err}
		}
		summary.FetchError = err.Error()
		c.sink.AdapterFailed(runID, summary.Adapter, err)
		return summary
	}
	summary.Fetched = len(raws)

	for i, raw := range raws {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		index := i + 1
		result, err := c.processSignal(ctx, runID, adapter, raw)
		switch {
		case err != nil:
			summary.Errors++
			c.sink.SignalFailed(SignalFailure{
				RunID:   runID,
				Adapter: summary.Adapter,
				Index:   index,
				Kind:    signals.ErrorKind(err),
				Err:     err,
				Raw:     raw,
			})
		case result.outcome == signals.Duplicate:
			summary.Duplicates++
			c.sink.SignalDuplicate(runID, summary.Adapter, index, result.signal.Fingerprint)
		default:
			summary.Stored++
			if result.createdSource != nil {
				c.sink.SourceCreated(runID, summary.Adapter, result.createdSource)
			}
			if result.trustChange != nil {
				c.sink.TrustChanged(*result.trustChange)
			}
			c.sink.SignalStored(runID, summary.Adapter, index, result.signal)
		}
	}

	return summary
}

type processed struct {
	outcome       signals.InsertOutcome
	signal        *signals.Signal
	createdSource *signals.Source
	trustChange   *TrustChange
}

// processSignal normalizes, resolves, scores and stores raw in one
// transaction. A duplicate fingerprint rolls the whole scope back.
func (c *Coordinator) processSignal(ctx context.Context, runID string, adapter signals.Adapter, raw signals.RawSignal) (result processed, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = processed{}
			err = fmt.Errorf("signal processing panicked: %v", p)
		}
	}()

	err = c.store.WithinTx(ctx, func(tx signals.StoreTx) error {
		result = processed{}

		normalized, err := adapter.NormalizeSignal(raw)
		if err != nil {
			var normErr *signals.NormalizationError
			if !errors.As(err, &normErr) {
				err = &signals.NormalizationError{Field: "signal", Reason: "adapter rejected record", Err: err}
			}
			return err
		}
		if err := normalized.Validate(); err != nil {
			return err
		}

		now := c.now()

		source, created, err := tx.GetOrCreateSource(ctx, normalized.SourcePlatform, normalized.SourceIdentifier, normalized.Timestamp)
		if err != nil {
			return err
		}
		if created {
			result.createdSource = source
		} else {
			if err := tx.UpdateSource(ctx, source.ID, signals.SourceUpdate{LastFetchedAt: &now}); err != nil {
				return err
			}
			source.LastFetchedAt = &now
		}

		scored, err := c.trust.Score(ctx, tx, normalized, source)
		if err != nil {
			return err
		}

		if scored.Score != source.TrustScore {
			change := &TrustChange{
				RunID:     runID,
				Adapter:   adapter.Name(),
				SourceID:  source.ID,
				Source:    source.Platform + ":" + source.ExternalIdentifier,
				From:      source.TrustScore,
				To:        scored.Score,
				Raw:       scored.Raw,
				Breakdown: scored.Breakdown,
			}
			if err := tx.UpdateSource(ctx, source.ID, signals.SourceUpdate{TrustScore: &scored.Score}); err != nil {
				return err
			}
			if c.recordHistory {
				if err := tx.RecordTrustChange(ctx, source.ID, scored.Score, trustChangeReason, "ingest:"+adapter.Name(), now); err != nil {
					return err
				}
			}
			source.TrustScore = scored.Score
			result.trustChange = change
		}

		fingerprint, err := c.dedup.Compute(normalized, source)
		if err != nil {
			return err
		}

		sig := &signals.Signal{
			Content:        normalized.Description,
			Category:       normalized.Category,
			Location:       *normalized.Location,
			OccurredAt:     normalized.Timestamp.UTC(),
			SourceID:       source.ID,
			SourceMetadata: normalized.AdditionalData,
			TrustScore:     scored.Score,
			Fingerprint:    fingerprint,
		}
		if err := sig.Validate(now); err != nil {
			return err
		}

		outcome, err := tx.InsertSignalIfAbsent(ctx, sig)
		if err != nil {
			return err
		}
		result.outcome = outcome
		result.signal = sig

		if outcome == signals.Duplicate {
			return signals.ErrRollback
		}
		return nil
	})
	if err != nil {
		return processed{}, err
	}

	return result, nil
}
