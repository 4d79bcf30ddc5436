package adapters

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/lysyi3m/signal-comb/app/signals"
	"gopkg.in/yaml.v3"
)

// ConfigCache holds the parsed source configurations keyed by name
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

// NewConfigCache creates a cache reading <name>.yml files from sourcesDir
func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

// Run (re)loads every *.yml file of the sources directory.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", name, "type", config.Type, "enabled", config.Settings.Enabled)
	}

	return nil
}

// LoadConfig re-reads a single source config and replaces the cached copy
func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := filepath.Join(cc.sourcesDir, name+".yml")
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	return maps.Clone(cc.cache)
}

// GetEnabledConfigs returns enabled configs sorted by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	var enabled []*Config
	for _, name := range slices.Sorted(maps.Keys(cc.cache)) {
		if cfg := cc.cache[name]; cfg.Settings.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	config := Config{Settings: ConfigSettings{Enabled: true}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 100
	}
	if config.Settings.RequestsPerSecond == 0 {
		config.Settings.RequestsPerSecond = 1
	}
	if config.RSS.DefaultCategory == "" {
		config.RSS.DefaultCategory = string(signals.CategoryOther)
	}
	if config.Mock.RadiusKm == 0 {
		config.Mock.RadiusKm = 10
	}
	if config.Mock.MinSignals == 0 {
		config.Mock.MinSignals = 1
	}
	if config.Mock.MaxSignals == 0 {
		config.Mock.MaxSignals = 20
	}

	return &config, nil
}

var validFilterFields = map[string]bool{
	"title":       true,
	"description": true,
	"content":     true,
	"link":        true,
	"categories":  true,
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("source name is required")
	}

	nonNegativeFields := map[string]float64{
		"timeout":             float64(config.Settings.Timeout),
		"max items":           float64(config.Settings.MaxItems),
		"requests per second": config.Settings.RequestsPerSecond,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	switch config.Type {
	case TypeRSS:
		if err := validateRSS(config.RSS); err != nil {
			return err
		}
	case TypeMock:
		if err := validateMock(config.Mock); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("source type is required")
	default:
		return fmt.Errorf("unknown source type %q", config.Type)
	}

	for i, v := range config.Verified {
		if v.Platform == "" || v.Identifier == "" {
			return fmt.Errorf("verified source at index %d needs platform and identifier", i)
		}
	}

	return nil
}

func validateRSS(rss RSSConfig) error {
	if len(rss.URLs) == 0 {
		return fmt.Errorf("at least one feed URL is required")
	}
	if _, err := signals.ParseCategory(rss.DefaultCategory); err != nil {
		return fmt.Errorf("invalid default category: %w", err)
	}
	for category := range rss.Categories {
		if _, err := signals.ParseCategory(category); err != nil {
			return fmt.Errorf("invalid category rule: %w", err)
		}
	}
	for i, filter := range rss.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}
	return nil
}

func validateMock(mock MockConfig) error {
	if mock.CenterLat < -90 || mock.CenterLat > 90 {
		return fmt.Errorf("center latitude %f out of range", mock.CenterLat)
	}
	if mock.CenterLon < -180 || mock.CenterLon > 180 {
		return fmt.Errorf("center longitude %f out of range", mock.CenterLon)
	}
	if mock.RadiusKm < 0 {
		return fmt.Errorf("radius must be non-negative")
	}
	if mock.MinSignals < 0 || mock.MaxSignals < mock.MinSignals {
		return fmt.Errorf("signal count range [%d, %d] is invalid", mock.MinSignals, mock.MaxSignals)
	}
	return nil
}
