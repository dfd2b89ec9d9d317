package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feeddigest/feeddigest/app/cache"
	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/feed"
	"github.com/feeddigest/feeddigest/app/tasks"
)

const (
	summaryCacheTTL      = time.Minute
	descriptionMaxLength = 200
)

type Handler struct {
	feeds     database.FeedRepository
	entries   database.EntryRepository
	runLogs   database.RunLogRepository
	scheduler tasks.TaskSchedulerInterface
	cache     cache.Interface
}

// NewHandler creates the API handler set. The cache may be nil, which
// disables summary caching.
func NewHandler(feeds database.FeedRepository, entries database.EntryRepository,
	runLogs database.RunLogRepository, scheduler tasks.TaskSchedulerInterface,
	summaryCache cache.Interface) *Handler {
	return &Handler{
		feeds:     feeds,
		entries:   entries,
		runLogs:   runLogs,
		scheduler: scheduler,
		cache:     summaryCache,
	}
}

func (h *Handler) clientError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": message})
}

func (h *Handler) serverError(c *gin.Context, operation string, err error) {
	slog.Error("API error", "operation", operation, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
}

// TriggerCrawl enqueues an ingestion run for the feed URL in the request body
func (h *Handler) TriggerCrawl(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.clientError(c, "Invalid JSON")
		return
	}

	var req struct {
		FeedURL string `json:"feed_url"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.clientError(c, "Invalid JSON")
		return
	}

	if req.FeedURL == "" {
		h.clientError(c, "feed_url is required")
		return
	}

	taskID, err := h.scheduler.EnqueueIngest(req.FeedURL)
	if err != nil {
		h.serverError(c, "trigger_crawl", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"task_id": taskID,
		"message": "RSS crawling task started",
	})
}

// GetSummary returns period stats, keyword and feed aggregations and the
// most recent run logs
func (h *Handler) GetSummary(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		if cached, ok, err := h.cache.Get(ctx, cache.SummaryKey); err == nil && ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	now := time.Now().UTC()
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)
	upperBound := now.AddDate(0, 0, 1)

	todayCount, err := h.entries.CountPublishedToday()
	if err != nil {
		h.serverError(c, "summary_today", err)
		return
	}
	weekCount, err := h.entries.CountPublishedSince(weekAgo)
	if err != nil {
		h.serverError(c, "summary_week", err)
		return
	}
	monthCount, err := h.entries.CountPublishedSince(monthAgo)
	if err != nil {
		h.serverError(c, "summary_month", err)
		return
	}

	keywordCounts, err := h.entries.KeywordCounts(weekAgo, upperBound, 10)
	if err != nil {
		h.serverError(c, "summary_keywords", err)
		return
	}
	feedCounts, err := h.entries.TopFeeds(weekAgo, upperBound, 5)
	if err != nil {
		h.serverError(c, "summary_feeds", err)
		return
	}
	recentLogs, err := h.runLogs.Recent(now.Add(-24*time.Hour), 5)
	if err != nil {
		h.serverError(c, "summary_logs", err)
		return
	}

	summary := Summary{
		PeriodStats: PeriodStats{
			Today:     todayCount,
			ThisWeek:  weekCount,
			ThisMonth: monthCount,
		},
		TopKeywords: make([]KeywordPair, 0, len(keywordCounts)),
		TopFeeds:    make([]TopFeed, 0, len(feedCounts)),
		RecentLogs:  make([]RecentLog, 0, len(recentLogs)),
	}
	for _, kc := range keywordCounts {
		summary.TopKeywords = append(summary.TopKeywords, KeywordPair{Term: kc.Term, Count: kc.Count})
	}
	for _, fc := range feedCounts {
		summary.TopFeeds = append(summary.TopFeeds, TopFeed{FeedTitle: fc.FeedTitle, Count: fc.Count})
	}
	for _, log := range recentLogs {
		summary.RecentLogs = append(summary.RecentLogs, RecentLog{
			FeedTitle:        log.FeedTitle,
			Status:           log.Status,
			EntriesProcessed: log.EntriesProcessed,
			EntriesNew:       log.EntriesNew,
			CreatedAt:        log.CreatedAt.Format(time.RFC3339),
		})
	}

	envelope := gin.H{"status": "success", "data": summary}

	if h.cache != nil {
		if payload, err := json.Marshal(envelope); err == nil {
			if err := h.cache.Set(ctx, cache.SummaryKey, payload, summaryCacheTTL); err != nil {
				slog.Warn("Failed to cache summary", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, envelope)
}

// ListEntries returns entries filtered by feed, period and keyword
func (h *Handler) ListEntries(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.clientError(c, "invalid limit")
			return
		}
		limit = v
	}

	filter := database.EntryFilter{
		FeedID:  c.Query("feed"),
		Period:  c.Query("period"),
		Keyword: c.Query("keyword"),
		Limit:   limit,
	}

	entries, err := h.entries.List(filter)
	if err != nil {
		h.serverError(c, "list_entries", err)
		return
	}

	now := time.Now().UTC()
	items := make([]EntryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, EntryItem{
			ID:          e.ID,
			Title:       e.Title,
			Link:        e.Link,
			Description: truncate(e.Description, descriptionMaxLength),
			Author:      e.Author,
			PublishedAt: e.PublishedAt.Format(time.RFC3339),
			Keywords:    e.Keywords,
			Feed: EntryFeed{
				ID:    e.FeedID,
				Title: e.FeedTitle,
				URL:   e.FeedURL,
			},
			TimePeriod: feed.TimePeriod(e.PublishedAt, now),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   items,
		"count":  len(items),
	})
}

// ListFeeds returns active feeds with entry counts
func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.ListActiveWithCounts(time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		h.serverError(c, "list_feeds", err)
		return
	}

	items := make([]FeedItem, 0, len(feeds))
	for _, f := range feeds {
		item := FeedItem{
			ID:               f.ID,
			Title:            f.Title,
			URL:              f.URL,
			Description:      f.Description,
			IsActive:         f.IsActive,
			EntryCount:       f.EntryCount,
			RecentEntryCount: f.RecentEntryCount,
		}
		if f.LastFetchedAt != nil {
			fetched := f.LastFetchedAt.Format(time.RFC3339)
			item.LastCrawledAt = &fetched
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   items,
		"count":  len(items),
	})
}

// GetHealth reports service health and 24-hour run statistics
func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feeds.Count(); err == nil {
		health["feeds"] = feedCount
	}

	if statusCounts, err := h.runLogs.CountByStatus(time.Now().Add(-24 * time.Hour)); err == nil {
		total := 0
		for _, count := range statusCounts {
			total += count
		}
		successRate := 1.0
		if total > 0 {
			successRate = float64(statusCounts[database.StatusSuccess]) / float64(total)
		}
		health["runs_24h"] = total
		health["errors_24h"] = statusCounts[database.StatusError]
		health["success_rate"] = successRate
	}

	c.JSON(http.StatusOK, health)
}

// truncate cuts a string to max runes, appending an ellipsis when cut
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
