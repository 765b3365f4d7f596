package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"webfolio/api/logger"
	"webfolio/api/models"
	"webfolio/api/store"
	"webfolio/api/utils"
)

// StatsStore runs the dashboard rollup queries.
type StatsStore interface {
	Overview(ctx context.Context, rng utils.TimeRange) (*store.Overview, error)
	Pages(ctx context.Context, rng utils.TimeRange, sortKey, order string) ([]store.PageMetrics, error)
	Realtime(ctx context.Context) (*store.Realtime, error)
	Acquisition(ctx context.Context, rng utils.TimeRange) (*store.Acquisition, error)
	Visitors(ctx context.Context, rng utils.TimeRange) (*store.VisitorBreakdown, error)
	ExportPageViews(ctx context.Context, from, to time.Time) ([]models.PageView, error)
}

const (
	statsTimeout  = 10 * time.Second
	exportTimeout = 30 * time.Second

	exportDateLayout  = "2006-01-02"
	defaultExportDays = 30
)

// StatsHandlers serves the admin-gated aggregation and export endpoints.
type StatsHandlers struct {
	store StatsStore
	log   logger.Logger
}

func NewStatsHandlers(s StatsStore, log logger.Logger) *StatsHandlers {
	return &StatsHandlers{
		store: s,
		log:   log,
	}
}

func requestRange(c *gin.Context) utils.TimeRange {
	return utils.ResolveRange(c.Query("range"), time.Now())
}

// GetOverview returns the headline metrics with trend and sparklines.
func (h *StatsHandlers) GetOverview(c *gin.Context) {
	rng := requestRange(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	overview, err := h.store.Overview(ctx, rng)
	if err != nil {
		h.log.Error("Failed to compute overview", logger.String("range", rng.Token), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// GetPages returns per-page metrics, sortable by views, visitors or
// bounce rate. Unrecognized sort keys fall back to views.
func (h *StatsHandlers) GetPages(c *gin.Context) {
	rng := requestRange(c)

	sortKey := c.Query("sort")
	switch sortKey {
	case store.SortViews, store.SortVisitors, store.SortBounce:
	default:
		sortKey = store.SortViews
	}
	order := c.Query("order")
	if order != store.OrderAsc {
		order = store.OrderDesc
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	pages, err := h.store.Pages(ctx, rng, sortKey, order)
	if err != nil {
		h.log.Error("Failed to compute page metrics", logger.String("range", rng.Token), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": pages,
		"meta": gin.H{
			"range": rng.Token,
			"sort":  sortKey,
			"order": order,
			"total": len(pages),
		},
	})
}

// GetRealtime returns current visitors and the recent visit feed. The
// dashboard polls this every few seconds.
func (h *StatsHandlers) GetRealtime(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	rt, err := h.store.Realtime(ctx)
	if err != nil {
		h.log.Error("Failed to compute realtime stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, rt)
}

// GetAcquisition returns UTM source, referrer and campaign breakdowns.
func (h *StatsHandlers) GetAcquisition(c *gin.Context) {
	rng := requestRange(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	acq, err := h.store.Acquisition(ctx, rng)
	if err != nil {
		h.log.Error("Failed to compute acquisition stats", logger.String("range", rng.Token), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, acq)
}

// GetVisitors returns device, browser, OS and geo breakdowns.
func (h *StatsHandlers) GetVisitors(c *gin.Context) {
	rng := requestRange(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	vb, err := h.store.Visitors(ctx, rng)
	if err != nil {
		h.log.Error("Failed to compute visitor breakdowns", logger.String("range", rng.Token), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, vb)
}

// ExportPageViews streams matching page views as a CSV attachment. Only
// the csv format is supported; the window comes from explicit from/to
// dates, a range token, or defaults to the last 30 days.
func (h *StatsHandlers) ExportPageViews(c *gin.Context) {
	if format := c.DefaultQuery("format", "csv"); format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV format is supported"})
		return
	}

	from, to, err := exportWindow(c)
	if err != nil {
		msg := "Invalid date format, use YYYY-MM-DD"
		if errors.Is(err, errIncompleteExportRange) {
			msg = "Both from and to dates are required"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), exportTimeout)
	defer cancel()

	views, err := h.store.ExportPageViews(ctx, from, to)
	if err != nil {
		h.log.Error("Failed to export page views", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	header := []string{
		"path", "referrer", "utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
		"session_id", "visitor_hash", "device_type", "browser", "browser_version",
		"os", "os_version", "country", "city", "region", "created_at",
	}
	rows := make([][]string, 0, len(views))
	for _, pv := range views {
		rows = append(rows, []string{
			pv.Path, pv.Referrer, pv.UTMSource, pv.UTMMedium, pv.UTMCampaign, pv.UTMContent, pv.UTMTerm,
			pv.SessionID, pv.VisitorHash, pv.DeviceType, pv.Browser, pv.BrowserVersion,
			pv.OS, pv.OSVersion, pv.Country, pv.City, pv.Region, pv.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(utils.ExportFilename(from, to))))
	c.Status(http.StatusOK)

	if err := utils.WriteCSV(c.Writer, header, rows); err != nil {
		// Headers are already out; nothing useful left to send.
		h.log.Error("Failed to stream CSV export", logger.Error(err))
	}
}

// errIncompleteExportRange flags an export request carrying only one of
// the from/to bounds.
var errIncompleteExportRange = errors.New("export window needs both from and to")

// exportWindow resolves the export time bounds. Explicit from/to dates
// win over a range token; with neither, the last 30 days are exported.
// Supplying only one bound is an error rather than a silent fallback.
func exportWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()

	fromParam := c.Query("from")
	toParam := c.Query("to")
	if fromParam != "" || toParam != "" {
		if fromParam == "" || toParam == "" {
			return time.Time{}, time.Time{}, errIncompleteExportRange
		}
		from, err := time.Parse(exportDateLayout, fromParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to, err := time.Parse(exportDateLayout, toParam)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// The to date is inclusive.
		return from, to.Add(24 * time.Hour), nil
	}

	if token := c.Query("range"); token != "" {
		rng := utils.ResolveRange(token, now)
		return rng.Start, rng.End, nil
	}

	return now.Add(-defaultExportDays * 24 * time.Hour), now, nil
}
