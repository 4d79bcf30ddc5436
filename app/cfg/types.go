package cfg

import "time"

const (
	ModeServe  = "serve"
	ModeIngest = "ingest"
)

// Cfg holds the process configuration from flags and environment
type Cfg struct {
	// Storage
	DBPath string

	// Application configuration
	SourcesDir         string
	Mode               string
	Port               string
	WorkerCount        int
	SchedulerInterval  time.Duration
	APIAccessKey       string
	AdapterConcurrency int
	RecordTrustHistory bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}
