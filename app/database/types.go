package database

import (
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

const DefaultListLimit = 100

// SignalFilter narrows ListSignals. Zero fields are ignored.
type SignalFilter struct {
	Category signals.Category
	SourceID string
	Since    time.Time
	Limit    int
}

// Stats summarizes stored signals and sources
type Stats struct {
	TotalSignals    int                      `json:"total_signals"`
	TotalSources    int                      `json:"total_sources"`
	VerifiedSources int                      `json:"verified_sources"`
	ActiveSources   int                      `json:"active_sources"`
	ByCategory      map[signals.Category]int `json:"by_category"`
	LatestSignalAt  *time.Time               `json:"latest_signal_at,omitempty"`
}
