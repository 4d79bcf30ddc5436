package adapters

const (
	TypeRSS  = "rss"
	TypeMock = "mock"
)

// Config is one <name>.yml file from the sources directory.
type Config struct {
	Name     string           // Derived from filename (without .yml extension)
	Type     string           `yaml:"type"`
	Settings ConfigSettings   `yaml:"settings"`
	RSS      RSSConfig        `yaml:"rss"`
	Mock     MockConfig       `yaml:"mock"`
	Verified []VerifiedSource `yaml:"verified"`
}

type ConfigSettings struct {
	Enabled           bool    `yaml:"enabled"`
	Timeout           int     `yaml:"timeout"` // seconds
	MaxItems          int     `yaml:"max_items"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type RSSConfig struct {
	URLs            []string            `yaml:"urls"`
	DefaultCategory string              `yaml:"default_category"`
	Categories      map[string][]string `yaml:"categories"` // category -> keywords
	SkipUnlocated   bool                `yaml:"skip_unlocated"`
	ExtractContent  bool                `yaml:"extract_content"` // fetch the linked page when an entry has no text
	Filters         []ConfigFilter      `yaml:"filters"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

type MockConfig struct {
	CenterLat  float64 `yaml:"center_lat"`
	CenterLon  float64 `yaml:"center_lon"`
	RadiusKm   float64 `yaml:"radius_km"`
	MinSignals int     `yaml:"min_signals"`
	MaxSignals int     `yaml:"max_signals"`
	Seed       uint64  `yaml:"seed"`
}

// VerifiedSource marks a source as verified before it is first seen.
type VerifiedSource struct {
	Platform   string `yaml:"platform"`
	Identifier string `yaml:"identifier"`
}

// Item is a feed entry reduced to what classification and filtering need.
type Item struct {
	Title       string
	Description string
	Content     string
	Link        string
	Categories  []string
}
