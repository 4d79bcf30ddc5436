package dedup

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestFingerprintDeterministic(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 15, 0, time.UTC)
	loc := signals.Point{Lon: 3.379205, Lat: 6.524379}

	first := Fingerprint("source-1", signals.CategoryRobbery, loc, at)
	second := Fingerprint("source-1", signals.CategoryRobbery, loc, at)

	if first != second {
		t.Errorf("Expected identical fingerprints, got %s and %s", first, second)
	}
	if !hexPattern.MatchString(first) {
		t.Errorf("Expected 64 lowercase hex characters, got %q", first)
	}
}

func TestFingerprintJitterTolerance(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 5, 0, time.UTC)
	base := Fingerprint("source-1", signals.CategoryAssault,
		signals.Point{Lon: 10.123451, Lat: 20.654321}, at)

	jittered := Fingerprint("source-1", signals.CategoryAssault,
		signals.Point{Lon: 10.123453, Lat: 20.654323}, at.Add(50*time.Second+123*time.Millisecond))

	if base != jittered {
		t.Errorf("Expected jitter to collapse onto one fingerprint")
	}

	otherZone := Fingerprint("source-1", signals.CategoryAssault,
		signals.Point{Lon: 10.123451, Lat: 20.654321}, at.In(time.FixedZone("WAT", 3600)))
	if base != otherZone {
		t.Errorf("Expected the same instant in another zone to match")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	loc := signals.Point{Lon: 10.12345, Lat: 20.65432}
	base := Fingerprint("source-1", signals.CategoryBurglary, loc, at)

	tests := []struct {
		name string
		fp   string
	}{
		{"category", Fingerprint("source-1", signals.CategoryHarassment, loc, at)},
		{"source", Fingerprint("source-2", signals.CategoryBurglary, loc, at)},
		{"longitude", Fingerprint("source-1", signals.CategoryBurglary, signals.Point{Lon: 10.12346, Lat: 20.65432}, at)},
		{"latitude", Fingerprint("source-1", signals.CategoryBurglary, signals.Point{Lon: 10.12345, Lat: 20.65431}, at)},
		{"minute", Fingerprint("source-1", signals.CategoryBurglary, loc, at.Add(time.Minute))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fp == base {
				t.Errorf("Expected changing %s to change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprintNegativeZero(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Fingerprint("s", signals.CategoryOther, signals.Point{Lon: -0.000001, Lat: 0.000001}, at)
	b := Fingerprint("s", signals.CategoryOther, signals.Point{Lon: 0, Lat: 0}, at)

	if a != b {
		t.Error("Expected coordinates rounding to zero to match the origin")
	}
}

type fakeChecker struct {
	known map[string]bool
	err   error
}

func (f *fakeChecker) SignalExists(ctx context.Context, fingerprint string) (bool, error) {
	return f.known[fingerprint], f.err
}

func TestEngineCompute(t *testing.T) {
	engine := NewEngine(&fakeChecker{})
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &signals.Source{ID: "source-1"}

	sig := signals.NormalizedSignal{
		Category:  signals.CategoryRobbery,
		Timestamp: at,
		Location:  &signals.Point{Lon: 1, Lat: 2},
	}

	fp, err := engine.Compute(sig, source)
	if err != nil {
		t.Fatal(err)
	}
	if want := Fingerprint("source-1", signals.CategoryRobbery, signals.Point{Lon: 1, Lat: 2}, at); fp != want {
		t.Errorf("Expected %s, got %s", want, fp)
	}

	sig.Location = nil
	_, err = engine.Compute(sig, source)
	var valErr *signals.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError without location, got %v", err)
	}

	sig.Location = &signals.Point{Lon: math.NaN(), Lat: math.NaN()}
	_, err = engine.Compute(sig, source)
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError for NaN location, got %v", err)
	}
}

func TestEngineIsDuplicate(t *testing.T) {
	checker := &fakeChecker{known: map[string]bool{"abc": true}}
	engine := NewEngine(checker)

	dup, err := engine.IsDuplicate(context.Background(), "abc")
	if err != nil || !dup {
		t.Errorf("Expected duplicate, got %v, %v", dup, err)
	}

	dup, err = engine.IsDuplicate(context.Background(), "def")
	if err != nil || dup {
		t.Errorf("Expected no duplicate, got %v, %v", dup, err)
	}

	checker.err = errors.New("store down")
	if _, err := engine.IsDuplicate(context.Background(), "abc"); err == nil {
		t.Error("Expected store error to propagate")
	}
}
