package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

// Coordinates are rounded to 5 decimals (about 1.1 m) and time to the minute,
// so re-polled copies of the same report collapse onto one fingerprint.
const coordinateScale = 1e5

// Fingerprint returns the lowercase hex SHA-256 of the canonical identity of a signal.
// location must pass Point.Validate; Engine.Compute checks it.
func Fingerprint(sourceID string, category signals.Category, location signals.Point, occurredAt time.Time) string {
	canonical := map[string]any{
		"source_id":   sourceID,
		"signal_type": string(category),
		"location":    []float64{roundCoordinate(location.Lon), roundCoordinate(location.Lat)},
		"occurred_at": occurredAt.UTC().Truncate(time.Minute).Format(time.RFC3339),
	}

	// json.Marshal sorts map keys.
	payload, err := json.Marshal(canonical)
	if err != nil {
		panic(fmt.Sprintf("dedup: canonical payload is not encodable: %v", err))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func roundCoordinate(v float64) float64 {
	r := math.Round(v*coordinateScale) / coordinateScale
	if r == 0 {
		return 0
	}
	return r
}
