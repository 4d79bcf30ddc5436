package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/signal-comb/app/adapters"
	"github.com/lysyi3m/signal-comb/app/signals"
)

// SyncSourcesTask registers the verified sources listed in one source config.
type SyncSourcesTask struct {
	Task
	Config   *adapters.Config
	registry SourceRegistry
}

// NewSyncSourcesTask creates a sync task for one source config
func NewSyncSourcesTask(config *adapters.Config, registry SourceRegistry) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:     NewTask(TaskTypeSyncSources, config.Name),
		Config:   config,
		registry: registry,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	created, updated := 0, 0
	for _, v := range t.Config.Verified {
		src, err := t.registry.GetSourceByKey(ctx, v.Platform, v.Identifier)
		if err != nil {
			return fmt.Errorf("failed to look up source %s:%s: %w", v.Platform, v.Identifier, err)
		}

		if src == nil {
			err := t.registry.CreateSource(ctx, &signals.Source{
				Platform:           v.Platform,
				ExternalIdentifier: v.Identifier,
				TrustScore:         signals.DefaultTrustScore,
				Verified:           true,
				Active:             true,
				Metadata:           map[string]any{"config": t.Config.Name},
			})
			if err == nil {
				created++
				continue
			}

			// An ingestion run may have created the source since the lookup.
			var lookupErr error
			src, lookupErr = t.registry.GetSourceByKey(ctx, v.Platform, v.Identifier)
			if lookupErr != nil || src == nil {
				return fmt.Errorf("failed to create source %s:%s: %w", v.Platform, v.Identifier, err)
			}
		}

		if !src.Verified {
			verified := true
			if err := t.registry.UpdateSource(ctx, src.ID, signals.SourceUpdate{Verified: &verified}); err != nil {
				return fmt.Errorf("failed to verify source %s: %w", src.ID, err)
			}
			updated++
		}
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"source", t.Target,
		"duration", t.GetDuration(),
		"created", created,
		"verified", updated)

	return nil
}
