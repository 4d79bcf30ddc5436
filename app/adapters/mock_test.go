package adapters

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

func newTestMockConfig() *Config {
	return &Config{
		Name:     "simulated",
		Type:     TypeMock,
		Settings: ConfigSettings{Enabled: true, MaxItems: 100},
		Mock: MockConfig{
			CenterLat:  6.5244,
			CenterLon:  3.3792,
			RadiusKm:   5,
			MinSignals: 10,
			MaxSignals: 20,
			Seed:       42,
		},
	}
}

func TestMockAdapterFetchSignals(t *testing.T) {
	config := newTestMockConfig()
	adapter := NewMockAdapter(config, Deps{Now: func() time.Time { return fetchTime }})

	raws, err := adapter.FetchSignals(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(raws) < 10 || len(raws) > 20 {
		t.Fatalf("Expected 10-20 signals, got %d", len(raws))
	}

	maxLatOffset := 5000/metersPerDegreeLat + 1e-9
	maxLonOffset := 5000/(metersPerDegreeLat*math.Cos(6.5244*math.Pi/180)) + 1e-9

	for i, raw := range raws {
		if _, err := signals.ParseCategory(raw.Category); err != nil {
			t.Errorf("Signal %d: invalid category %q", i, raw.Category)
		}
		if raw.Location == nil {
			t.Fatalf("Signal %d: expected location", i)
		}
		if math.Abs(raw.Location.Lat-6.5244) > maxLatOffset || math.Abs(raw.Location.Lon-3.3792) > maxLonOffset {
			t.Errorf("Signal %d: location %v outside radius", i, raw.Location)
		}
		age := fetchTime.Sub(raw.Published)
		if age < 0 || age > 24*time.Hour {
			t.Errorf("Signal %d: published %v outside the last day", i, raw.Published)
		}
		if !strings.HasPrefix(raw.SourceName, "mock:") {
			t.Errorf("Signal %d: unexpected source name %s", i, raw.SourceName)
		}
		if !strings.HasSuffix(raw.Title, " Reported") {
			t.Errorf("Signal %d: unexpected title %s", i, raw.Title)
		}
	}
}

func TestMockAdapterMaxItems(t *testing.T) {
	config := newTestMockConfig()
	config.Settings.MaxItems = 3

	raws, err := NewMockAdapter(config, Deps{}).FetchSignals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 3 {
		t.Errorf("Expected max items to cap signals at 3, got %d", len(raws))
	}
}

func TestMockAdapterSeeded(t *testing.T) {
	now := Deps{Now: func() time.Time { return fetchTime }}
	first, err := NewMockAdapter(newTestMockConfig(), now).FetchSignals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewMockAdapter(newTestMockConfig(), now).FetchSignals(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("Expected same count for same seed, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Title != second[i].Title || *first[i].Location != *second[i].Location {
			t.Errorf("Signal %d differs between seeded runs", i)
		}
	}
}

func TestMockAdapterNormalizeSignal(t *testing.T) {
	adapter := NewMockAdapter(newTestMockConfig(), Deps{})

	normalized, err := adapter.NormalizeSignal(signals.RawSignal{
		Title:       "Vehicle Theft Reported",
		Description: "Lorem ipsum",
		Category:    "vehicle_theft",
		Published:   fetchTime,
		SourceName:  "mock:traffic_monitor",
		Location:    &signals.Point{Lon: 3.38, Lat: 6.52},
		HasVideo:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if normalized.SourcePlatform != "mock" || normalized.SourceIdentifier != "mock:traffic_monitor" {
		t.Errorf("Unexpected source: %s/%s", normalized.SourcePlatform, normalized.SourceIdentifier)
	}
	if normalized.Category != signals.CategoryVehicleTheft || !normalized.Flag("has_video") {
		t.Errorf("Unexpected normalized signal: %+v", normalized)
	}

	if _, err := adapter.NormalizeSignal(signals.RawSignal{Category: "robbery"}); err == nil {
		t.Error("Expected error without timestamp")
	}
}

func TestCategoryTitle(t *testing.T) {
	if got := categoryTitle(signals.CategoryVehicleTheft); got != "Vehicle Theft" {
		t.Errorf("Expected 'Vehicle Theft', got %q", got)
	}
}

func TestBuild(t *testing.T) {
	adapter, err := Build(newTestMockConfig(), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*MockAdapter); !ok {
		t.Errorf("Expected *MockAdapter, got %T", adapter)
	}

	adapter, err = Build(newTestRSSConfig("https://example.com/feed.xml"), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := adapter.(*RSSAdapter); !ok {
		t.Errorf("Expected *RSSAdapter, got %T", adapter)
	}

	if _, err := Build(&Config{Name: "x", Type: "twitter"}, Deps{}); err == nil {
		t.Error("Expected error for unknown type")
	}

	all, err := BuildAll([]*Config{newTestMockConfig(), newTestRSSConfig("https://example.com/feed.xml")}, Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name() != "simulated" {
		t.Errorf("Unexpected adapters: %v", all)
	}
}
