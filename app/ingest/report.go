package ingest

import (
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

// AdapterSummary counts the outcome of one adapter in a run.
type AdapterSummary struct {
	Adapter     string `json:"adapter"`
	Fetched     int    `json:"fetched"`
	Stored      int    `json:"stored"`
	Duplicates  int    `json:"duplicates"`
	Errors      int    `json:"errors"`
	FetchError  string `json:"fetch_error,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

func (s AdapterSummary) Failed() bool {
	return s.FetchError != ""
}

// RunReport is the result of one ingestion pass.
type RunReport struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Adapters   []AdapterSummary `json:"adapters"`
}

func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals sums the per-adapter counters.
func (r RunReport) Totals() AdapterSummary {
	var total AdapterSummary
	for _, s := range r.Adapters {
		total.Fetched += s.Fetched
		total.Stored += s.Stored
		total.Duplicates += s.Duplicates
		total.Errors += s.Errors
	}
	return total
}

func (r RunReport) FailedAdapters() int {
	n := 0
	for _, s := range r.Adapters {
		if s.Failed() {
			n++
		}
	}
	return n
}

// SignalFailure carries everything needed to diagnose one failed signal offline.
type SignalFailure struct {
	RunID   string
	Adapter string
	Index   int
	Kind    string
	Err     error
	Raw     signals.RawSignal
}

// TrustChange describes a source score update made during ingestion.
type TrustChange struct {
	RunID     string
	Adapter   string
	SourceID  string
	Source    string
	From      int
	To        int
	Raw       int
	Breakdown map[string]int
}
