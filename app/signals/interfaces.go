package signals

import (
	"context"
	"time"
)

// Adapter is one external source type. FetchSignals may be called again on
// the next run, so implementations must be safe to re-poll.
type Adapter interface {
	Name() string
	FetchSignals(ctx context.Context) ([]RawSignal, error)
	NormalizeSignal(raw RawSignal) (NormalizedSignal, error)
}

type SourceStore interface {
	CreateSource(ctx context.Context, src *Source) error
	GetOrCreateSource(ctx context.Context, platform, externalID string, lastFetchedAt time.Time) (*Source, bool, error)
	GetSource(ctx context.Context, id string) (*Source, error)
	UpdateSource(ctx context.Context, id string, update SourceUpdate) error
}

type SignalStore interface {
	InsertSignalIfAbsent(ctx context.Context, sig *Signal) (InsertOutcome, error)
	SignalExists(ctx context.Context, fingerprint string) (bool, error)
	QuerySignals(ctx context.Context, q SignalQuery) ([]Signal, error)
}

type TrustHistoryStore interface {
	RecordTrustChange(ctx context.Context, sourceID string, score int, reason, changedBy string, at time.Time) error
	ListTrustHistory(ctx context.Context, sourceID string) ([]TrustHistory, error)
}

// StoreTx is the store as seen from inside one transaction.
type StoreTx interface {
	SourceStore
	SignalStore
	TrustHistoryStore
}

// Store runs units of work in a transaction.
type Store interface {
	StoreTx
	WithinTx(ctx context.Context, fn func(tx StoreTx) error) error
}
