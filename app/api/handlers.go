package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/signal-comb/app/adapters"
	"github.com/lysyi3m/signal-comb/app/cfg"
	"github.com/lysyi3m/signal-comb/app/database"
	"github.com/lysyi3m/signal-comb/app/signals"
	"github.com/lysyi3m/signal-comb/app/tasks"
)

const maxListLimit = 1000

// NewHandler creates a new Handler instance
func NewHandler(store StoreInterface, registry tasks.SourceRegistry, configCache *adapters.ConfigCache,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		store:       store,
		registry:    registry,
		configCache: configCache,
		scheduler:   scheduler,
	}
}

// GetHealth reports database reachability
func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":                "ok",
		"version":               cfg.GetVersion(),
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		slog.Error("Database error", "operation", "ping", "error", err)
		health["status"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

// GetStats returns store counters and the last run report
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{"store": stats}
	if h.scheduler != nil {
		if report := h.scheduler.LastReport(); report != nil {
			response["last_run"] = gin.H{
				"run_id":      report.RunID,
				"started_at":  report.StartedAt,
				"finished_at": report.FinishedAt,
				"totals":      report.Totals(),
				"adapters":    report.Adapters,
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListSignals(c *gin.Context) {
	filter := database.SignalFilter{SourceID: c.Query("source_id")}

	if value := c.Query("type"); value != "" {
		category, err := signals.ParseCategory(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type parameter", "details": err.Error()})
			return
		}
		filter.Category = category
	}

	if value := c.Query("since"); value != "" {
		since, err := time.Parse(time.RFC3339, value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since parameter, expected RFC3339"})
			return
		}
		filter.Since = since
	}

	if value := c.Query("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 1 || limit > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		filter.Limit = limit
	}

	list, err := h.store.ListSignals(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_signals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]signalView, 0, len(list))
	for _, s := range list {
		views = append(views, newSignalView(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": views,
		"total":   len(views),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	list, err := h.store.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	tier := c.Query("tier")
	views := make([]sourceView, 0, len(list))
	for _, s := range list {
		if tier != "" && s.TrustTier() != tier {
			continue
		}
		views = append(views, newSourceView(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": views,
		"total":   len(views),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newSourceView(*source))
}

func (h *Handler) APIUpdateSource(c *gin.Context) {
	id := c.Param("id")

	var patch sourcePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if patch.Verified == nil && patch.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update, expected verified and/or active"})
		return
	}

	err := h.store.UpdateSource(c.Request.Context(), id, signals.SourceUpdate{
		Verified: patch.Verified,
		Active:   patch.Active,
	})
	if errors.Is(err, signals.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "update_source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, newSourceView(*source))
}

func (h *Handler) APIGetTrustHistory(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	history, err := h.store.ListTrustHistory(c.Request.Context(), source.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_trust_history", "source_id", source.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]trustHistoryView, 0, len(history))
	for _, entry := range history {
		views = append(views, trustHistoryView{
			TrustScore: entry.TrustScore,
			Reason:     entry.Reason,
			ChangedBy:  entry.ChangedBy,
			ValidFrom:  entry.ValidFrom,
			ValidTo:    entry.ValidTo,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"source":  newSourceView(*source),
		"history": views,
	})
}

// APIReloadConfig re-reads one source config and queues its source sync
func (h *Handler) APIReloadConfig(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	config, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncSourcesTask(config, h.registry)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and sync task enqueued",
		"source": gin.H{
			"name":     name,
			"type":     config.Type,
			"enabled":  config.Settings.Enabled,
			"verified": len(config.Verified),
		},
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
		},
	})
}

// APITriggerIngest queues an ingestion run
func (h *Handler) APITriggerIngest(c *gin.Context) {
	taskID, err := h.scheduler.TriggerIngest()
	if errors.Is(err, tasks.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Ingestion run already in progress"})
		return
	}
	if err != nil {
		slog.Error("Error enqueueing ingestion run", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue ingestion run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeIngestRun,
		},
	})
}

func (h *Handler) lookupSource(c *gin.Context) (*signals.Source, bool) {
	id := c.Param("id")

	source, err := h.store.GetSource(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return nil, false
	}

	return source, true
}
