package adapters

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

// Deps are the collaborators shared by all adapters.
type Deps struct {
	HTTPClient *http.Client
	UserAgent  string
	Now        func() time.Time
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// Build constructs the adapter variant named by config.Type.
func Build(config *Config, deps Deps) (signals.Adapter, error) {
	switch config.Type {
	case TypeRSS:
		return NewRSSAdapter(config, deps), nil
	case TypeMock:
		return NewMockAdapter(config, deps), nil
	default:
		return nil, fmt.Errorf("unknown source type %q for %s", config.Type, config.Name)
	}
}

// BuildAll constructs adapters for every config, in order.
func BuildAll(configs []*Config, deps Deps) ([]signals.Adapter, error) {
	result := make([]signals.Adapter, 0, len(configs))
	for _, config := range configs {
		adapter, err := Build(config, deps)
		if err != nil {
			return nil, err
		}
		result = append(result, adapter)
	}
	return result, nil
}

func additionalData(raw signals.RawSignal) map[string]any {
	return map[string]any{
		"has_photo":     raw.HasPhoto,
		"has_video":     raw.HasVideo,
		"original_link": raw.Link,
	}
}
