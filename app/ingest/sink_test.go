package ingest

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/lysyi3m/signal-comb/app/signals"
)

func TestSlogSinkSignalFailed(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.SignalFailed(SignalFailure{
		RunID:   "run-1",
		Adapter: "lagos-feed",
		Index:   3,
		Kind:    signals.KindValidation,
		Err:     &signals.ValidationError{Field: "location", Reason: "is required for fingerprinting"},
		Raw:     signals.RawSignal{Title: "Robbery at the market", SourceName: "citizen"},
	})

	out := buf.String()
	for _, want := range []string{`"run_id":"run-1"`, `"adapter":"lagos-feed"`, `"index":3`, `"kind":"validation"`, `"title":"Robbery at the market"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
}

func TestSlogSinkAdapterFailed(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.AdapterFailed("run-1", "rss", &signals.FetchError{Adapter: "rss", Err: errors.New("timeout")})

	if !strings.Contains(buf.String(), `"kind":"fetch"`) {
		t.Errorf("Expected fetch kind in %s", buf.String())
	}
}

func TestRunReportTotals(t *testing.T) {
	report := RunReport{Adapters: []AdapterSummary{
		{Adapter: "a", Fetched: 3, Stored: 2, Duplicates: 1},
		{Adapter: "b", FetchError: "fetch from b failed: timeout"},
		{Adapter: "c", Fetched: 4, Stored: 1, Errors: 3},
	}}

	totals := report.Totals()
	if totals.Fetched != 7 || totals.Stored != 3 || totals.Duplicates != 1 || totals.Errors != 3 {
		t.Errorf("Unexpected totals: %+v", totals)
	}
	if report.FailedAdapters() != 1 {
		t.Errorf("Expected 1 failed adapter, got %d", report.FailedAdapters())
	}
}
