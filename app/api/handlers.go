package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-monitor/app/database"
)

func NewHandler(feedRepo database.FeedRepository, subRepo database.SubRepository,
	mon MonitorInterface) *Handler {
	return &Handler{
		feedRepo: feedRepo,
		subRepo:  subRepo,
		monitor:  mon,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["queue_depth"] = h.monitor.QueueDepth()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	tier1, tier2 := h.monitor.StatsSnapshot()

	c.JSON(http.StatusOK, map[string]interface{}{
		"in_progress": map[string]interface{}{
			"counters": tier2,
			"summary":  tier2.String(),
		},
		"accumulated": map[string]interface{}{
			"counters": tier1,
			"summary":  tier1.String(),
		},
		"queue_depth": h.monitor.QueueDepth(),
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListActiveFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(feeds))
	for _, f := range feeds {
		info := map[string]interface{}{
			"id":          f.ID,
			"link":        f.Link,
			"title":       f.Title,
			"error_count": f.ErrorCount,
			"updated_at":  f.UpdatedAt,
		}
		if f.Interval != nil {
			info["interval"] = *f.Interval
		}
		if f.NextCheckTime != nil {
			info["next_check_time"] = *f.NextCheckTime
		}
		if subs, err := h.subRepo.GetActiveSubs(f.ID); err == nil {
			info["subscribers"] = len(subs)
		}
		out = append(out, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": out,
		"total": len(out),
	})
}

// SubmitFeedCheckByID queues an out-of-band check for a single feed.
func (h *Handler) SubmitFeedCheckByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed id"})
		return
	}

	f, err := h.feedRepo.GetFeedByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if f.State != database.FeedStateActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed is deactivated"})
		return
	}

	// Forcing a check bypasses the server-side cache window.
	if f.NextCheckTime != nil {
		if err := h.feedRepo.SaveFeedFields(&database.Feed{ID: f.ID}, "next_check_time"); err != nil {
			slog.Error("Database error", "operation", "clear_next_check", "feed", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		f.NextCheckTime = nil
	}

	h.monitor.SubmitFeed(f)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Check submitted",
		"feed": gin.H{
			"id":    f.ID,
			"link":  f.Link,
			"title": f.Title,
		},
	})
}
