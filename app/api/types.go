package api

import (
	"context"
	"time"

	"github.com/lysyi3m/signal-comb/app/adapters"
	"github.com/lysyi3m/signal-comb/app/database"
	"github.com/lysyi3m/signal-comb/app/signals"
	"github.com/lysyi3m/signal-comb/app/tasks"
)

// StoreInterface is the read/update surface of the store used by the API
type StoreInterface interface {
	ListSignals(ctx context.Context, filter database.SignalFilter) ([]signals.Signal, error)
	ListSources(ctx context.Context) ([]signals.Source, error)
	GetSource(ctx context.Context, id string) (*signals.Source, error)
	UpdateSource(ctx context.Context, id string, update signals.SourceUpdate) error
	ListTrustHistory(ctx context.Context, sourceID string) ([]signals.TrustHistory, error)
	Stats(ctx context.Context) (*database.Stats, error)
	Ping(ctx context.Context) error
}

var _ StoreInterface = (*database.Store)(nil)

// Handler serves the admin and reporting endpoints
type Handler struct {
	store       StoreInterface
	registry    tasks.SourceRegistry
	configCache *adapters.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}

type signalView struct {
	ID          string           `json:"id"`
	Content     string           `json:"content"`
	Type        signals.Category `json:"type"`
	Location    signals.Point    `json:"location"`
	OccurredAt  time.Time        `json:"occurred_at"`
	SourceID    string           `json:"source_id"`
	Metadata    map[string]any   `json:"source_metadata"`
	Fingerprint string           `json:"fingerprint"`
	TrustScore  int              `json:"trust_score"`
	CreatedAt   time.Time        `json:"created_at"`
}

func newSignalView(s signals.Signal) signalView {
	return signalView{
		ID:          s.ID,
		Content:     s.Content,
		Type:        s.Category,
		Location:    s.Location,
		OccurredAt:  s.OccurredAt,
		SourceID:    s.SourceID,
		Metadata:    s.SourceMetadata,
		Fingerprint: s.Fingerprint,
		TrustScore:  s.TrustScore,
		CreatedAt:   s.CreatedAt,
	}
}

type sourceView struct {
	ID                string         `json:"id"`
	Platform          string         `json:"platform"`
	Identifier        string         `json:"identifier"`
	TrustScore        int            `json:"trust_score"`
	TrustTier         string         `json:"trust_tier"`
	Verified          bool           `json:"verified"`
	Active            bool           `json:"active"`
	LastFetchedAt     *time.Time     `json:"last_fetched_at"`
	ConsecutiveErrors int            `json:"consecutive_errors"`
	Metadata          map[string]any `json:"metadata"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func newSourceView(s signals.Source) sourceView {
	return sourceView{
		ID:                s.ID,
		Platform:          s.Platform,
		Identifier:        s.ExternalIdentifier,
		TrustScore:        s.TrustScore,
		TrustTier:         s.TrustTier(),
		Verified:          s.Verified,
		Active:            s.Active,
		LastFetchedAt:     s.LastFetchedAt,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Metadata:          s.Metadata,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

type trustHistoryView struct {
	TrustScore int        `json:"trust_score"`
	Reason     string     `json:"reason"`
	ChangedBy  string     `json:"changed_by"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}

type sourcePatch struct {
	Verified *bool `json:"verified"`
	Active   *bool `json:"active"`
}
