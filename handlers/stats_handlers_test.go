package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webfolio/api/handlers"
	"webfolio/api/logger"
	"webfolio/api/models"
	"webfolio/api/store"
	"webfolio/api/utils"
)

// fakeStatsStore returns canned rollups and records the arguments it was
// called with.
type fakeStatsStore struct {
	overview *store.Overview
	pages    []store.PageMetrics
	exported []models.PageView

	gotRange utils.TimeRange
	gotSort  string
	gotOrder string
	gotFrom  time.Time
	gotTo    time.Time
}

func (f *fakeStatsStore) Overview(_ context.Context, rng utils.TimeRange) (*store.Overview, error) {
	f.gotRange = rng
	return f.overview, nil
}

func (f *fakeStatsStore) Pages(_ context.Context, rng utils.TimeRange, sortKey, order string) ([]store.PageMetrics, error) {
	f.gotRange = rng
	f.gotSort = sortKey
	f.gotOrder = order
	pages := make([]store.PageMetrics, len(f.pages))
	copy(pages, f.pages)
	store.SortPages(pages, sortKey, order)
	return pages, nil
}

func (f *fakeStatsStore) Realtime(context.Context) (*store.Realtime, error) {
	return &store.Realtime{CurrentVisitors: 3}, nil
}

func (f *fakeStatsStore) Acquisition(_ context.Context, rng utils.TimeRange) (*store.Acquisition, error) {
	f.gotRange = rng
	return &store.Acquisition{Sources: []store.CountItem{{Name: "newsletter", Count: 12}}}, nil
}

func (f *fakeStatsStore) Visitors(_ context.Context, rng utils.TimeRange) (*store.VisitorBreakdown, error) {
	f.gotRange = rng
	return &store.VisitorBreakdown{Devices: []store.CountItem{{Name: "mobile", Count: 7}}}, nil
}

func (f *fakeStatsStore) ExportPageViews(_ context.Context, from, to time.Time) ([]models.PageView, error) {
	f.gotFrom = from
	f.gotTo = to
	return f.exported, nil
}

func setupStatsRouter(fs *fakeStatsStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := handlers.NewStatsHandlers(fs, logger.NewNop())
	stats := r.Group("/api/stats")
	stats.GET("/overview", h.GetOverview)
	stats.GET("/pages", h.GetPages)
	stats.GET("/realtime", h.GetRealtime)
	stats.GET("/acquisition", h.GetAcquisition)
	stats.GET("/visitors", h.GetVisitors)
	stats.GET("/export", h.ExportPageViews)

	return r
}

func getPath(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetOverview(t *testing.T) {
	fs := &fakeStatsStore{overview: &store.Overview{
		TotalViews: store.Metric{Value: 420, Change: 50, Trend: utils.TrendUp, Sparkline: []float64{0, 1, 2, 3, 4, 5, 6}},
		BounceRate: store.Metric{Value: 38.5, Change: -4, Trend: utils.TrendUp},
	}}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/overview?range=30d")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30d", fs.gotRange.Token)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got, "totalViews")
	assert.Contains(t, got, "uniqueVisitors")
	assert.Contains(t, got, "sessions")
	assert.Contains(t, got, "bounceRate")
}

func TestGetOverview_UnknownRangeFallsBack(t *testing.T) {
	fs := &fakeStatsStore{overview: &store.Overview{}}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/overview?range=1y")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, utils.Range7d, fs.gotRange.Token)
}

func TestGetPages_SortFallback(t *testing.T) {
	fs := &fakeStatsStore{pages: []store.PageMetrics{
		{Path: "/a", Views: 10},
		{Path: "/b", Views: 30},
	}}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/pages?sort=bogus&order=sideways")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.SortViews, fs.gotSort)
	assert.Equal(t, store.OrderDesc, fs.gotOrder)

	var got struct {
		Data []store.PageMetrics `json:"data"`
		Meta struct {
			Sort  string `json:"sort"`
			Order string `json:"order"`
			Total int    `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, store.SortViews, got.Meta.Sort)
	assert.Equal(t, store.OrderDesc, got.Meta.Order)
	assert.Equal(t, 2, got.Meta.Total)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "/b", got.Data[0].Path)
}

func TestGetPages_SortByBounceAscending(t *testing.T) {
	fs := &fakeStatsStore{pages: []store.PageMetrics{
		{Path: "/a", BounceRate: 80},
		{Path: "/b", BounceRate: 20},
	}}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/pages?sort=bounceRate&order=asc")

	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Data []store.PageMetrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Data, 2)
	assert.Equal(t, "/b", got.Data[0].Path)
}

func TestGetRealtime(t *testing.T) {
	fs := &fakeStatsStore{}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/realtime")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"currentVisitors":3`)
}

func TestExportPageViews_RejectsNonCSVFormat(t *testing.T) {
	fs := &fakeStatsStore{}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/export?format=json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Only CSV format is supported"}`, w.Body.String())
}

func TestExportPageViews_CSVBody(t *testing.T) {
	fs := &fakeStatsStore{exported: []models.PageView{
		{
			Path:        "/pricing",
			Referrer:    `https://example.com/?q=a,b"c`,
			SessionID:   "s1",
			VisitorHash: "v1",
			DeviceType:  models.DeviceDesktop,
			CreatedAt:   time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC),
		},
	}}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/export?from=2025-05-01&to=2025-05-31")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="pageviews_2025-05-01_2025-05-31.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "path,referrer,utm_source"))
	// Commas and quotes inside fields stay intact.
	assert.Contains(t, lines[1], `"https://example.com/?q=a,b""c"`)
	assert.Contains(t, lines[1], "2025-05-02T10:00:00Z")

	// The to date is inclusive.
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), fs.gotFrom)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), fs.gotTo)
}

func TestExportPageViews_SingleBoundRejected(t *testing.T) {
	fs := &fakeStatsStore{}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/export?from=2025-05-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Both from and to dates are required"}`, w.Body.String())

	w = getPath(r, "/api/stats/export?to=2025-05-31")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Both from and to dates are required"}`, w.Body.String())
}

func TestExportPageViews_InvalidDates(t *testing.T) {
	fs := &fakeStatsStore{}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/export?from=05/01/2025&to=05/31/2025")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid date format, use YYYY-MM-DD"}`, w.Body.String())
}

func TestExportPageViews_DefaultsToLast30Days(t *testing.T) {
	fs := &fakeStatsStore{}
	r := setupStatsRouter(fs)

	w := getPath(r, "/api/stats/export")

	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 30*24*time.Hour, fs.gotTo.Sub(fs.gotFrom), float64(time.Minute))
}
