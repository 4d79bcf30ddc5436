package trust

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

const (
	BaseScore            = 50
	VerifiedBonus        = 20
	PhotoBonus           = 15
	VideoBonus           = 15
	LocationBonus        = 10
	CrossValidationBonus = 25

	CrossValidationRadiusMeters = 500
	CrossValidationWindow       = 10 * time.Minute

	MinScore = 0
	MaxScore = 100
)

// Breakdown component keys.
const (
	KeyBase            = "base"
	KeyVerified        = "verified_bonus"
	KeyPhoto           = "photo_bonus"
	KeyVideo           = "video_bonus"
	KeyLocation        = "location_bonus"
	KeyCrossValidation = "cross_validation_bonus"
)

// Keys lists breakdown components in reporting order.
var Keys = []string{KeyBase, KeyVerified, KeyPhoto, KeyVideo, KeyLocation, KeyCrossValidation}

// SignalQuerier is the read the engine needs for cross-validation. It is
// passed per call so scoring reads through the caller's transaction.
type SignalQuerier interface {
	QuerySignals(ctx context.Context, q signals.SignalQuery) ([]signals.Signal, error)
}

// Result is a scored signal: the breakdown, its sum and the clamped score.
type Result struct {
	Breakdown map[string]int
	Raw       int
	Score     int
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Breakdown returns every component of the trust score for sig from source.
func (e *Engine) Breakdown(ctx context.Context, querier SignalQuerier, sig signals.NormalizedSignal, source *signals.Source) (map[string]int, error) {
	breakdown := map[string]int{
		KeyBase:            BaseScore,
		KeyVerified:        0,
		KeyPhoto:           0,
		KeyVideo:           0,
		KeyLocation:        0,
		KeyCrossValidation: 0,
	}

	if source != nil && source.Verified {
		breakdown[KeyVerified] = VerifiedBonus
	}
	if sig.Flag("has_photo") {
		breakdown[KeyPhoto] = PhotoBonus
	}
	if sig.Flag("has_video") {
		breakdown[KeyVideo] = VideoBonus
	}
	if sig.Location != nil {
		breakdown[KeyLocation] = LocationBonus
	}

	corroborated, err := e.crossValidated(ctx, querier, sig, source)
	if err != nil {
		return nil, err
	}
	if corroborated {
		breakdown[KeyCrossValidation] = CrossValidationBonus
	}

	return breakdown, nil
}

// Score sums the breakdown and clamps it to [MinScore, MaxScore].
func (e *Engine) Score(ctx context.Context, querier SignalQuerier, sig signals.NormalizedSignal, source *signals.Source) (Result, error) {
	breakdown, err := e.Breakdown(ctx, querier, sig, source)
	if err != nil {
		return Result{}, err
	}

	raw := 0
	for _, v := range breakdown {
		raw += v
	}

	return Result{Breakdown: breakdown, Raw: raw, Score: Clamp(raw)}, nil
}

// Clamp limits raw to [MinScore, MaxScore].
func Clamp(raw int) int {
	return min(max(raw, MinScore), MaxScore)
}

func (e *Engine) crossValidated(ctx context.Context, querier SignalQuerier, sig signals.NormalizedSignal, source *signals.Source) (bool, error) {
	if sig.Location == nil || sig.Timestamp.IsZero() || querier == nil {
		return false, nil
	}

	query := signals.SignalQuery{
		Category:     sig.Category,
		Center:       *sig.Location,
		RadiusMeters: CrossValidationRadiusMeters,
		From:         sig.Timestamp.Add(-CrossValidationWindow),
		To:           sig.Timestamp.Add(CrossValidationWindow),
		Limit:        1,
	}
	if source != nil {
		query.ExcludeSourceID = source.ID
	}

	matches, err := querier.QuerySignals(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to query corroborating signals: %w", err)
	}

	return len(matches) > 0, nil
}
