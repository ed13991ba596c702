package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/feed-relay/app/delivery"
	"github.com/lysyi3m/feed-relay/app/filters"
	"github.com/lysyi3m/feed-relay/app/formatter"
	"github.com/lysyi3m/feed-relay/app/subscription"
)

const generatorName = "Feed Relay"

func NewHandler(configCache *subscription.ConfigCache, outbox OutboxInterface,
	previewer PreviewerInterface, scheduler SchedulerInterface, baseURL string) *Handler {
	return &Handler{
		configCache: configCache,
		outbox:      outbox,
		generator:   delivery.NewGenerator(),
		previewer:   previewer,
		scheduler:   scheduler,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// GetFeed serves the recent deliveries of a feed as RSS.
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	items, updated := h.outbox.Items(name)

	ch := delivery.Channel{
		Name:        name,
		Link:        feedConfig.URL,
		FeedURL:     feedConfig.URL,
		Generator:   generatorName,
		LastUpdated: updated,
	}
	if h.baseURL != "" {
		ch.SelfLink = h.baseURL + "/feeds/" + name
	}

	rss, err := h.generator.Run(ch, items)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)
	if !updated.IsZero() {
		c.Header("X-Last-Updated", updated.Format(time.RFC3339))
	}

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	status := http.StatusOK
	if h.scheduler != nil {
		schedulerHealth := h.scheduler.Health()
		health["scheduler"] = schedulerHealth
		if schedulerHealth["status"] == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, health)
}

// ValidateFilters reports every problem of a filter expression. An empty list means valid.
func (h *Handler) ValidateFilters(c *gin.Context) {
	var req ValidateFiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	errs := filters.Validate(req.Expression)
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, ValidateFiltersResponse{Errors: errs})
}

// PreviewArticle explains what the next refresh of a feed would do with one article.
func (h *Handler) PreviewArticle(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	feedConfig, err := h.configCache.GetConfig(req.Feed)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	result, err := h.previewer.Preview(c.Request.Context(), feedConfig, req.ArticleIDHash)
	if err != nil {
		if writeRegexError(c, err) {
			return
		}
		slog.Error("Preview failed", "feed", req.Feed, "article", req.ArticleIDHash, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Preview failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// FormatArticle renders the payloads a delivery template produces for an article.
func (h *Handler) FormatArticle(c *gin.Context) {
	var req FormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(req.Article.Flattened) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Article has no fields"})
		return
	}

	formatted, err := formatter.FormatArticleForDiscord(req.Article, req.FormatOptions)
	if err != nil {
		if writeRegexError(c, err) {
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Formatting failed", "details": err.Error()})
		return
	}

	payloads, err := formatter.GeneratePayloads(formatted, req.DeliveryOptions)
	if err != nil {
		if writeRegexError(c, err) {
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payload generation failed", "details": err.Error()})
		return
	}
	if payloads == nil {
		payloads = []formatter.Payload{}
	}

	c.JSON(http.StatusOK, FormatResponse{
		Status:                    formatStatusSuccess,
		Messages:                  payloads,
		CustomPlaceholderPreviews: formatted.CustomPlaceholderPreviews,
	})
}

func writeRegexError(c *gin.Context, err error) bool {
	var regexErr *formatter.CustomPlaceholderRegexError
	if !errors.As(err, &regexErr) {
		return false
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"code":    "CUSTOM_PLACEHOLDER_REGEX_EVAL",
		"message": regexErr.Error(),
		"errors":  regexErr.RegexErrors,
	})
	return true
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]any, 0, len(configs))

	for _, feedConfig := range configs {
		deliveries := make([]string, 0, len(feedConfig.Deliveries))
		for _, d := range feedConfig.Deliveries {
			deliveries = append(deliveries, d.Name)
		}

		items, updated := h.outbox.Items(feedConfig.Name)
		feedInfo := map[string]any{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"enabled":          feedConfig.Settings.Enabled,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"deliveries":       deliveries,
			"recent_items":     len(items),
		}
		if !updated.IsZero() {
			feedInfo["last_delivered_at"] = updated
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]any{
		"feeds": feeds,
		"total": len(feeds),
	})
}

// APIReloadFeed re-reads the feed's YAML file and schedules an immediate refresh.
func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if err := h.scheduler.TriggerFeed(name); err != nil {
		slog.Error("Error triggering feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger feed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and refresh scheduled",
		"feed": gin.H{
			"name":       name,
			"url":        feedConfig.URL,
			"enabled":    feedConfig.Settings.Enabled,
			"deliveries": len(feedConfig.Deliveries),
		},
	})
}

// APIRefreshFeed schedules an immediate refresh without reloading configuration.
func (h *Handler) APIRefreshFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	if err := h.scheduler.TriggerFeed(name); err != nil {
		slog.Error("Error triggering feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger feed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "feed": name})
}
