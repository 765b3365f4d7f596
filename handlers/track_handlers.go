package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"webfolio/api/logger"
	"webfolio/api/models"
)

// Collector persists inbound page views and event batches.
type Collector interface {
	InsertPageView(ctx context.Context, pv models.PageView) error
	InsertEvents(ctx context.Context, events []models.Event) (int, error)
}

const trackTimeout = 15 * time.Second

// TrackHandlers serves the public collection endpoints.
type TrackHandlers struct {
	store Collector
	log   logger.Logger
}

func NewTrackHandlers(store Collector, log logger.Logger) *TrackHandlers {
	return &TrackHandlers{
		store: store,
		log:   log,
	}
}

// TrackPageView records one page view. Requests flagged as bot traffic
// are accepted but not stored.
func (h *TrackHandlers) TrackPageView(c *gin.Context) {
	var pv models.PageView
	if err := c.ShouldBindJSON(&pv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := pv.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if c.GetBool("is_bot") {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if pv.UserAgent == "" {
		pv.UserAgent = c.Request.UserAgent()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), trackTimeout)
	defer cancel()

	if err := h.store.InsertPageView(ctx, pv); err != nil {
		h.log.Error("Failed to insert page view",
			logger.String("path", pv.Path),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrackEvents records a batch of behavioral events. Failure granularity
// is per item: malformed events are skipped while the rest of the batch
// is still inserted.
func (h *TrackHandlers) TrackEvents(c *gin.Context) {
	var batch models.EventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(batch.Events) == 0 || c.GetBool("is_bot") {
		c.JSON(http.StatusOK, gin.H{"success": true, "inserted": 0})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), trackTimeout)
	defer cancel()

	inserted, err := h.store.InsertEvents(ctx, batch.Events)
	if err != nil {
		h.log.Error("Failed to insert event batch",
			logger.Int("batch_size", len(batch.Events)),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "inserted": inserted})
}
