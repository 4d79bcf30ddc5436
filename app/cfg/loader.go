package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./signal-comb.db" description:"SQLite database file"`

	// Application configuration
	SourcesDir         string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Mode               string `long:"mode" env:"MODE" default:"serve" choice:"serve" choice:"ingest" description:"serve runs the scheduler and API, ingest runs one pass and exits"`
	Port               string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount        int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval  int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Seconds between ingestion runs"`
	APIAccessKey       string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	AdapterConcurrency int    `long:"adapter-concurrency" env:"ADAPTER_CONCURRENCY" default:"1" description:"Adapters processed in parallel within one run"`
	RecordTrustHistory bool   `long:"record-trust-history" env:"RECORD_TRUST_HISTORY" description:"Append a trust history row when ingestion changes a source score"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Signal Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" choice:"logfmt" description:"Log output format"`
}

var globalCfg *Cfg

// Load parses the process arguments and environment. It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.SchedulerInterval < 1 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %d", raw.SchedulerInterval)
	}
	if raw.AdapterConcurrency < 1 {
		return nil, fmt.Errorf("adapter concurrency must be positive, got %d", raw.AdapterConcurrency)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesDir:         raw.SourcesDir,
		Mode:               raw.Mode,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  time.Duration(raw.SchedulerInterval) * time.Second,
		APIAccessKey:       raw.APIAccessKey,
		AdapterConcurrency: raw.AdapterConcurrency,
		RecordTrustHistory: raw.RecordTrustHistory,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		LogFormat:          raw.LogFormat,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc

	return nil
}
