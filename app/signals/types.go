package signals

import (
	"fmt"
	"math"
	"time"
)

// Category is the incident type of a signal.
type Category string

const (
	CategoryRobbery      Category = "robbery"
	CategoryAssault      Category = "assault"
	CategoryBurglary     Category = "burglary"
	CategoryVehicleTheft Category = "vehicle_theft"
	CategoryHarassment   Category = "harassment"
	CategoryOther        Category = "other"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{
	CategoryRobbery,
	CategoryAssault,
	CategoryBurglary,
	CategoryVehicleTheft,
	CategoryHarassment,
	CategoryOther,
}

// ParseCategory returns the Category named by value.
func ParseCategory(value string) (Category, error) {
	for _, c := range Categories {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown signal category %q", value)
}

func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return &ValidationError{Field: "location", Reason: "coordinates must be finite"}
	}
	if p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "location", Reason: fmt.Sprintf("longitude %f out of range", p.Lon)}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "location", Reason: fmt.Sprintf("latitude %f out of range", p.Lat)}
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lon)
}

// RawSignal is the adapter-native record before normalization. It is never persisted.
type RawSignal struct {
	Title       string
	Description string
	Category    string
	Link        string
	Published   time.Time
	SourceName  string
	Location    *Point
	HasPhoto    bool
	HasVideo    bool
}

// NormalizedSignal is an adapter record mapped onto the common shape.
type NormalizedSignal struct {
	Title            string
	Category         Category
	Description      string
	Timestamp        time.Time
	Location         *Point
	SourcePlatform   string
	SourceIdentifier string
	AdditionalData   map[string]any
}

// Flag reports whether AdditionalData[key] is the boolean true.
func (s NormalizedSignal) Flag(key string) bool {
	v, ok := s.AdditionalData[key].(bool)
	return ok && v
}

func (s NormalizedSignal) Validate() error {
	if !s.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s.Category)}
	}
	if s.SourcePlatform == "" {
		return &ValidationError{Field: "source_platform", Reason: "is required"}
	}
	if s.SourceIdentifier == "" {
		return &ValidationError{Field: "source_identifier", Reason: "is required"}
	}
	if s.Location != nil {
		if err := s.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

const DefaultTrustScore = 50

// Source is one reporting origin, identified by platform and external identifier.
type Source struct {
	ID                 string
	Platform           string
	ExternalIdentifier string
	TrustScore         int
	Verified           bool
	Active             bool
	LastFetchedAt      *time.Time
	ConsecutiveErrors  int
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s Source) TrustTier() string {
	switch {
	case s.TrustScore < 40:
		return "low"
	case s.TrustScore < 70:
		return "medium"
	default:
		return "high"
	}
}

func (s Source) String() string {
	return fmt.Sprintf("%s:%s (%d)", s.Platform, s.ExternalIdentifier, s.TrustScore)
}

// SourceUpdate holds the fields to change on a Source. Nil fields are left untouched.
type SourceUpdate struct {
	TrustScore        *int
	Verified          *bool
	Active            *bool
	LastFetchedAt     *time.Time
	ConsecutiveErrors *int
	Metadata          map[string]any
}

func (u SourceUpdate) Empty() bool {
	return u.TrustScore == nil && u.Verified == nil && u.Active == nil &&
		u.LastFetchedAt == nil && u.ConsecutiveErrors == nil && u.Metadata == nil
}

// Signal is a stored report.
type Signal struct {
	ID             string
	Content        string
	Category       Category
	Location       Point
	OccurredAt     time.Time
	SourceID       string
	SourceMetadata map[string]any
	Fingerprint    string
	TrustScore     int
	CreatedAt      time.Time
}

// Validate checks the invariants a Signal must hold at the moment it is stored.
func (s Signal) Validate(now time.Time) error {
	if !s.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s.Category)}
	}
	if err := s.Location.Validate(); err != nil {
		return err
	}
	if s.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: "is required"}
	}
	if s.OccurredAt.After(now) {
		return &ValidationError{Field: "occurred_at", Reason: "signal cannot be in the future"}
	}
	if s.SourceID == "" {
		return &ValidationError{Field: "source_id", Reason: "is required"}
	}
	if len(s.Fingerprint) != 64 {
		return &ValidationError{Field: "fingerprint", Reason: "must be 64 hex characters"}
	}
	return nil
}

type TrustHistory struct {
	ID         int64
	SourceID   string
	TrustScore int
	Reason     string
	ChangedBy  string
	ValidFrom  time.Time
	ValidTo    *time.Time
	CreatedAt  time.Time
}

// InsertOutcome tells whether an insert stored a new signal.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

func (o InsertOutcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "inserted"
}

// SignalQuery selects stored signals by category, distance from Center and an
// inclusive time window. ExcludeSourceID drops signals of one source.
type SignalQuery struct {
	Category        Category
	Center          Point
	RadiusMeters    float64
	From            time.Time
	To              time.Time
	ExcludeSourceID string
	Limit           int
}
