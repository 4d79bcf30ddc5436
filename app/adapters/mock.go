package adapters

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/lysyi3m/signal-comb/app/signals"
)

const metersPerDegreeLat = 111320.0

var mockSourceNames = []string{
	"mock:citizen_reporter_1",
	"mock:traffic_monitor",
	"mock:neighborhood_watch",
}

// MockAdapter generates random signals scattered around a centre point.
type MockAdapter struct {
	config *Config
	faker  *gofakeit.Faker
	mu     sync.Mutex
	now    func() time.Time
}

// NewMockAdapter creates an adapter generating random signals around the configured centre.
func NewMockAdapter(config *Config, deps Deps) *MockAdapter {
	return &MockAdapter{
		config: config,
		faker:  gofakeit.New(config.Mock.Seed),
		now:    deps.clock(),
	}
}

func (a *MockAdapter) Name() string {
	return a.config.Name
}

func (a *MockAdapter) FetchSignals(ctx context.Context) ([]signals.RawSignal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := a.faker.IntRange(a.config.Mock.MinSignals, a.config.Mock.MaxSignals)
	count = min(count, a.config.Settings.MaxItems)

	now := a.now()
	raws := make([]signals.RawSignal, 0, count)
	for range count {
		if err := ctx.Err(); err != nil {
			return nil, &signals.FetchError{Adapter: a.Name(), Err: err}
		}
		raws = append(raws, a.generate(now))
	}

	return raws, nil
}

func (a *MockAdapter) NormalizeSignal(raw signals.RawSignal) (signals.NormalizedSignal, error) {
	category, err := signals.ParseCategory(raw.Category)
	if err != nil {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "category", Reason: "unknown mock category", Err: err}
	}
	if raw.Published.IsZero() {
		return signals.NormalizedSignal{}, &signals.NormalizationError{Field: "published", Reason: "missing timestamp"}
	}

	return signals.NormalizedSignal{
		Title:            raw.Title,
		Category:         category,
		Description:      raw.Description,
		Timestamp:        raw.Published,
		Location:         raw.Location,
		SourcePlatform:   TypeMock,
		SourceIdentifier: raw.SourceName,
		AdditionalData:   additionalData(raw),
	}, nil
}

func (a *MockAdapter) generate(now time.Time) signals.RawSignal {
	category := signals.Categories[a.faker.IntRange(0, len(signals.Categories)-1)]
	minutesAgo := a.faker.IntRange(0, 1440)

	radiusMeters := a.config.Mock.RadiusKm * 1000
	lat := a.config.Mock.CenterLat + a.faker.Float64Range(-radiusMeters, radiusMeters)/metersPerDegreeLat
	lon := a.config.Mock.CenterLon
	if cosLat := math.Cos(a.config.Mock.CenterLat * math.Pi / 180); cosLat > 1e-9 {
		lon += a.faker.Float64Range(-radiusMeters, radiusMeters) / (metersPerDegreeLat * cosLat)
	}

	return signals.RawSignal{
		Title:       categoryTitle(category) + " Reported",
		Description: a.faker.LoremIpsumParagraph(1, 5, 12, " "),
		Category:    string(category),
		Link:        a.faker.URL(),
		Published:   now.Add(-time.Duration(minutesAgo) * time.Minute),
		SourceName:  a.faker.RandomString(mockSourceNames),
		Location:    &signals.Point{Lon: clamp(lon, -180, 180), Lat: clamp(lat, -90, 90)},
		HasPhoto:    a.faker.Bool(),
		HasVideo:    a.faker.Bool(),
	}
}

func categoryTitle(category signals.Category) string {
	words := strings.Split(string(category), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
