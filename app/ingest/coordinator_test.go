package ingest

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/signal-comb/app/database"
	"github.com/lysyi3m/signal-comb/app/signals"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var lagos = signals.Point{Lon: 3.3792, Lat: 6.5244}

type fakeAdapter struct {
	name      string
	raws      []signals.RawSignal
	fetchErr  error
	panicWith any
	normErr   error
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchSignals(ctx context.Context) ([]signals.RawSignal, error) {
	if a.panicWith != nil {
		panic(a.panicWith)
	}
	return a.raws, a.fetchErr
}

func (a *fakeAdapter) NormalizeSignal(raw signals.RawSignal) (signals.NormalizedSignal, error) {
	if a.normErr != nil {
		return signals.NormalizedSignal{}, a.normErr
	}
	category, err := signals.ParseCategory(raw.Category)
	if err != nil {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "category", Reason: "unknown", Err: err}
	}
	return signals.NormalizedSignal{
		Title:            raw.Title,
		Category:         category,
		Description:      raw.Description,
		Timestamp:        raw.Published,
		Location:         raw.Location,
		SourcePlatform:   "test",
		SourceIdentifier: raw.SourceName,
		AdditionalData: map[string]any{
			"has_photo": raw.HasPhoto,
			"has_video": raw.HasVideo,
		},
	}, nil
}

type recordingSink struct {
	mu         sync.Mutex
	created    []*signals.Source
	stored     []*signals.Signal
	duplicates []string
	failures   []SignalFailure
	changes    []TrustChange
	adapterErr map[string]error
	completed  []AdapterSummary
	reports    []RunReport
}

func newRecordingSink() *recordingSink {
	return &recordingSink{adapterErr: make(map[string]error)}
}

func (s *recordingSink) RunStarted(runID string, adapters int) {}

func (s *recordingSink) SourceCreated(runID, adapter string, source *signals.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, source)
}

func (s *recordingSink) SignalStored(runID, adapter string, index int, sig *signals.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, sig)
}

func (s *recordingSink) SignalDuplicate(runID, adapter string, index int, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates = append(s.duplicates, fingerprint)
}

func (s *recordingSink) SignalFailed(failure SignalFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
}

func (s *recordingSink) TrustChanged(change TrustChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
}

func (s *recordingSink) AdapterFailed(runID, adapter string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapterErr[adapter] = err
}

func (s *recordingSink) AdapterCompleted(runID string, summary AdapterSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, summary)
}

func (s *recordingSink) RunCompleted(report RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewStoreWithClock(db, func() time.Time { return testNow })
}

func raw(source string, category signals.Category, loc *signals.Point, at time.Time) signals.RawSignal {
	return signals.RawSignal{
		Title:       string(category) + " reported",
		Description: "Reported near the market",
		Category:    string(category),
		Published:   at,
		SourceName:  source,
		Location:    loc,
	}
}

func point(lon, lat float64) *signals.Point {
	return &signals.Point{Lon: lon, Lat: lat}
}

func newTestCoordinator(store *database.Store, sink EventSink, adapters ...signals.Adapter) *Coordinator {
	return NewCoordinator(store, adapters, sink, WithClock(func() time.Time { return testNow }))
}

func TestRunStoresAndDeduplicates(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()
	at := testNow.Add(-time.Hour)

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("reporter", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat), at),
		raw("reporter", signals.CategoryRobbery, point(lagos.Lon+0.000001, lagos.Lat), at.Add(20*time.Second)),
	}}

	report := newTestCoordinator(store, sink, adapter).Run(context.Background())

	if len(report.Adapters) != 1 {
		t.Fatalf("Expected 1 adapter summary, got %d", len(report.Adapters))
	}
	summary := report.Adapters[0]
	if summary.Fetched != 2 || summary.Stored != 1 || summary.Duplicates != 1 || summary.Errors != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if report.RunID == "" {
		t.Error("Expected run id")
	}
	if len(sink.created) != 1 {
		t.Errorf("Expected 1 created source event, got %d", len(sink.created))
	}

	second := newTestCoordinator(store, newRecordingSink(), adapter).Run(context.Background())
	if second.Adapters[0].Stored != 0 || second.Adapters[0].Duplicates != 2 {
		t.Errorf("Expected re-poll to be all duplicates, got %+v", second.Adapters[0])
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSignals != 1 || stats.TotalSources != 1 {
		t.Errorf("Expected 1 signal and 1 source, got %+v", stats)
	}
}

func TestRunIsolatesAdapterFailures(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()
	at := testNow.Add(-time.Hour)

	failing := &fakeAdapter{name: "failing", fetchErr: errors.New("connection refused")}
	panicking := &fakeAdapter{name: "panicking", panicWith: "nil map"}
	healthy := &fakeAdapter{name: "healthy", raws: []signals.RawSignal{
		raw("reporter", signals.CategoryAssault, point(lagos.Lon, lagos.Lat), at),
	}}

	coordinator := NewCoordinator(store, []signals.Adapter{failing, panicking, healthy}, sink,
		WithClock(func() time.Time { return testNow }),
		WithConcurrency(3))
	report := coordinator.Run(context.Background())

	if report.FailedAdapters() != 2 {
		t.Errorf("Expected 2 failed adapters, got %d", report.FailedAdapters())
	}
	if report.Adapters[0].Adapter != "failing" || report.Adapters[1].Adapter != "panicking" {
		t.Errorf("Expected summaries in adapter order, got %+v", report.Adapters)
	}
	if report.Adapters[2].Stored != 1 {
		t.Errorf("Expected healthy adapter to store 1 signal, got %+v", report.Adapters[2])
	}

	for _, name := range []string{"failing", "panicking"} {
		err := sink.adapterErr[name]
		if signals.ErrorKind(err) != signals.KindFetch {
			t.Errorf("Expected fetch error for %s, got %v", name, err)
		}
	}
	if len(sink.completed) != 3 {
		t.Errorf("Expected 3 completed adapters, got %d", len(sink.completed))
	}
	if len(sink.reports) != 1 {
		t.Errorf("Expected run completed once, got %d", len(sink.reports))
	}
}

func TestRunContinuesAfterSignalError(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()
	at := testNow.Add(-time.Hour)

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("reporter", "arson", point(lagos.Lon, lagos.Lat), at),
		raw("reporter", signals.CategoryBurglary, nil, at),
		raw("reporter", signals.CategoryBurglary, point(lagos.Lon, lagos.Lat), testNow.Add(time.Hour)),
		raw("reporter", signals.CategoryBurglary, point(lagos.Lon, lagos.Lat), at),
	}}

	report := newTestCoordinator(store, sink, adapter).Run(context.Background())

	summary := report.Adapters[0]
	if summary.Errors != 3 || summary.Stored != 1 {
		t.Errorf("Expected 3 errors and 1 stored, got %+v", summary)
	}

	wantKinds := []string{signals.KindNormalization, signals.KindValidation, signals.KindValidation}
	if len(sink.failures) != len(wantKinds) {
		t.Fatalf("Expected %d failures, got %d", len(wantKinds), len(sink.failures))
	}
	for i, want := range wantKinds {
		f := sink.failures[i]
		if f.Kind != want {
			t.Errorf("Failure %d: expected kind %s, got %s (%v)", i, want, f.Kind, f.Err)
		}
		if f.Index != i+1 {
			t.Errorf("Failure %d: expected index %d, got %d", i, i+1, f.Index)
		}
	}
}

func TestRunRollsBackSourceOfRejectedSignal(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("unlocated", signals.CategoryHarassment, nil, testNow.Add(-time.Hour)),
		raw("time-traveller", signals.CategoryHarassment, point(lagos.Lon, lagos.Lat), testNow.Add(time.Minute)),
	}}

	report := newTestCoordinator(store, sink, adapter).Run(context.Background())
	if report.Adapters[0].Errors != 2 {
		t.Fatalf("Expected 2 errors, got %+v", report.Adapters[0])
	}

	for _, name := range []string{"unlocated", "time-traveller"} {
		src, err := store.GetSourceByKey(context.Background(), "test", name)
		if err != nil {
			t.Fatal(err)
		}
		if src != nil {
			t.Errorf("Expected source %s to be rolled back, got %+v", name, src)
		}
	}
	if len(sink.created) != 0 {
		t.Errorf("Expected no created source events, got %d", len(sink.created))
	}
}

func TestRunRejectsNonFiniteLocation(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("reporter", signals.CategoryRobbery, point(math.NaN(), math.NaN()), testNow.Add(-time.Hour)),
		raw("reporter", signals.CategoryRobbery, point(math.Inf(1), lagos.Lat), testNow.Add(-time.Hour)),
	}}

	report := newTestCoordinator(store, sink, adapter).Run(context.Background())

	if summary := report.Adapters[0]; summary.Errors != 2 || summary.Stored != 0 {
		t.Errorf("Expected 2 errors and nothing stored, got %+v", summary)
	}
	if len(sink.failures) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(sink.failures))
	}
	for i, f := range sink.failures {
		if f.Kind != signals.KindValidation {
			t.Errorf("Failure %d: expected kind %s, got %s (%v)", i, signals.KindValidation, f.Kind, f.Err)
		}
	}
}

func TestRunWrapsAdapterNormalizationErrors(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{
		name:    "feed",
		raws:    []signals.RawSignal{raw("reporter", signals.CategoryOther, point(1, 1), testNow)},
		normErr: errors.New("unparseable payload"),
	}

	newTestCoordinator(store, sink, adapter).Run(context.Background())

	if len(sink.failures) != 1 || sink.failures[0].Kind != signals.KindNormalization {
		t.Errorf("Expected one normalization failure, got %+v", sink.failures)
	}
}

func TestRunCrossValidation(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()
	at := testNow.Add(-time.Hour)

	first := &fakeAdapter{name: "first", raws: []signals.RawSignal{
		raw("alpha", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat), at),
		raw("alpha", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat+0.001), at.Add(2*time.Minute)),
	}}
	second := &fakeAdapter{name: "second", raws: []signals.RawSignal{
		raw("beta", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat+0.002), at.Add(5*time.Minute)),
		raw("beta", signals.CategoryAssault, point(lagos.Lon, lagos.Lat+0.002), at.Add(6*time.Minute)),
	}}

	report := newTestCoordinator(store, sink, first, second).Run(context.Background())
	if report.Totals().Stored != 4 {
		t.Fatalf("Expected 4 stored signals, got %+v", report.Totals())
	}

	wantScores := []int{60, 60, 85, 60}
	for i, want := range wantScores {
		if got := sink.stored[i].TrustScore; got != want {
			t.Errorf("Signal %d: expected trust %d, got %d", i, want, got)
		}
	}

	beta, err := store.GetSourceByKey(context.Background(), "test", "beta")
	if err != nil {
		t.Fatal(err)
	}
	if beta.TrustScore != 60 {
		t.Errorf("Expected beta's trust to follow its latest signal, got %d", beta.TrustScore)
	}
}

func TestRunRecordsTrustHistory(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		func() signals.RawSignal {
			r := raw("reporter", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat), testNow.Add(-time.Hour))
			r.HasPhoto = true
			return r
		}(),
	}}

	coordinator := NewCoordinator(store, []signals.Adapter{adapter}, sink,
		WithClock(func() time.Time { return testNow }),
		WithTrustHistory(true))
	coordinator.Run(context.Background())

	if len(sink.changes) != 1 {
		t.Fatalf("Expected 1 trust change, got %d", len(sink.changes))
	}
	change := sink.changes[0]
	if change.From != signals.DefaultTrustScore || change.To != 75 {
		t.Errorf("Expected change 50 -> 75, got %d -> %d", change.From, change.To)
	}

	history, err := store.ListTrustHistory(context.Background(), change.SourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].TrustScore != 75 || history[0].ChangedBy != "ingest:feed" {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestRunWithoutTrustHistory(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("reporter", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat), testNow.Add(-time.Hour)),
	}}
	newTestCoordinator(store, sink, adapter).Run(context.Background())

	if len(sink.changes) != 1 {
		t.Fatalf("Expected 1 trust change, got %d", len(sink.changes))
	}
	history, err := store.ListTrustHistory(context.Background(), sink.changes[0].SourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history rows, got %d", len(history))
	}
}

func TestRunInterruptedByContext(t *testing.T) {
	store := newTestStore(t)
	sink := newRecordingSink()

	adapter := &fakeAdapter{name: "feed", raws: []signals.RawSignal{
		raw("reporter", signals.CategoryRobbery, point(lagos.Lon, lagos.Lat), testNow.Add(-time.Hour)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestCoordinator(store, sink, adapter).Run(ctx)
	summary := report.Adapters[0]
	if !summary.Interrupted || summary.Stored != 0 {
		t.Errorf("Expected interrupted run with nothing stored, got %+v", summary)
	}
}
