package dedup

import (
	"context"

	"github.com/lysyi3m/signal-comb/app/signals"
)

type ExistenceChecker interface {
	SignalExists(ctx context.Context, fingerprint string) (bool, error)
}

// Engine computes fingerprints and checks stored ones.
type Engine struct {
	checker ExistenceChecker
}

// NewEngine creates an engine that checks existence through checker.
func NewEngine(checker ExistenceChecker) *Engine {
	return &Engine{checker: checker}
}

// Compute fingerprints a normalized signal attributed to source.
func (e *Engine) Compute(sig signals.NormalizedSignal, source *signals.Source) (string, error) {
	if sig.Location == nil {
		return "", &signals.ValidationError{Field: "location", Reason: "is required for fingerprinting"}
	}
	if err := sig.Location.Validate(); err != nil {
		return "", err
	}
	if source == nil || source.ID == "" {
		return "", &signals.ValidationError{Field: "source_id", Reason: "is required for fingerprinting"}
	}
	return Fingerprint(source.ID, sig.Category, *sig.Location, sig.Timestamp), nil
}

// IsDuplicate reports whether a signal with fingerprint is stored. Ingestion
// relies on the atomic insert instead; this check is racy between callers.
func (e *Engine) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	return e.checker.SignalExists(ctx, fingerprint)
}
