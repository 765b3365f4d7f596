package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"webfolio/api/models"
	"webfolio/api/utils"
)

// Metric is one dashboard metric with its trend against the previous
// period and a sparkline series for chart rendering.
type Metric struct {
	Value     float64   `json:"value"`
	Change    float64   `json:"change"`
	Trend     string    `json:"trend"`
	Sparkline []float64 `json:"sparkline"`
}

// Overview is the response of the overview endpoint.
type Overview struct {
	TotalViews     Metric `json:"totalViews"`
	UniqueVisitors Metric `json:"uniqueVisitors"`
	Sessions       Metric `json:"sessions"`
	BounceRate     Metric `json:"bounceRate"`
}

// PageMetrics carries per-page rollups. Entry, exit and bounce rates are
// derived from session-grouped subqueries, not stored fields.
type PageMetrics struct {
	Path           string  `json:"path"`
	Views          uint64  `json:"views"`
	UniqueVisitors uint64  `json:"uniqueVisitors"`
	EntryRate      float64 `json:"entryRate"`
	ExitRate       float64 `json:"exitRate"`
	BounceRate     float64 `json:"bounceRate"`
}

// RecentVisit is one row of the realtime feed.
type RecentVisit struct {
	Path       string    `json:"path"`
	DeviceType string    `json:"deviceType"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Realtime is the response of the realtime endpoint.
type Realtime struct {
	CurrentVisitors uint64        `json:"currentVisitors"`
	RecentVisits    []RecentVisit `json:"recentVisits"`
}

// CountItem is a generic name/count breakdown row.
type CountItem struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

// Acquisition is the response of the acquisition endpoint.
type Acquisition struct {
	Sources      []CountItem `json:"sources"`
	TopReferrers []CountItem `json:"topReferrers"`
	TopCampaigns []CountItem `json:"topCampaigns"`
}

// VisitorBreakdown is the response of the visitors endpoint.
type VisitorBreakdown struct {
	Devices          []CountItem `json:"devices"`
	Browsers         []CountItem `json:"browsers"`
	OperatingSystems []CountItem `json:"operatingSystems"`
	Countries        []CountItem `json:"countries"`
}

// Sort keys accepted by the pages endpoint.
const (
	SortViews    = "views"
	SortVisitors = "visitors"
	SortBounce   = "bounceRate"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

const (
	realtimeWindow   = 5 * time.Minute
	recentVisitLimit = 20
	breakdownLimit   = 10
)

// Overview computes the four dashboard headline metrics. The underlying
// queries are independent, so they run concurrently and are awaited
// jointly before responding.
func (s *AnalyticsStore) Overview(ctx context.Context, rng utils.TimeRange) (*Overview, error) {
	var ov Overview

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.countMetric(gctx, rng, "count()", false)
		if err != nil {
			return fmt.Errorf("total views: %w", err)
		}
		ov.TotalViews = m
		return nil
	})
	g.Go(func() error {
		m, err := s.countMetric(gctx, rng, "uniq(visitor_hash)", false)
		if err != nil {
			return fmt.Errorf("unique visitors: %w", err)
		}
		ov.UniqueVisitors = m
		return nil
	})
	g.Go(func() error {
		m, err := s.countMetric(gctx, rng, "uniq(session_id)", false)
		if err != nil {
			return fmt.Errorf("sessions: %w", err)
		}
		ov.Sessions = m
		return nil
	})
	g.Go(func() error {
		m, err := s.bounceMetric(gctx, rng)
		if err != nil {
			return fmt.Errorf("bounce rate: %w", err)
		}
		ov.BounceRate = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

// countMetric evaluates an aggregate expression over the current and
// previous windows plus its sparkline. expr comes from a fixed internal
// set, never from request input.
func (s *AnalyticsStore) countMetric(ctx context.Context, rng utils.TimeRange, expr string, invertTrend bool) (Metric, error) {
	current, err := s.scalar(ctx, expr, rng.Start, rng.End)
	if err != nil {
		return Metric{}, err
	}
	previous, err := s.scalar(ctx, expr, rng.PrevStart, rng.PrevEnd)
	if err != nil {
		return Metric{}, err
	}
	spark, err := s.sparkline(ctx, rng, expr)
	if err != nil {
		return Metric{}, err
	}

	change := utils.CalculateChange(current, previous)
	return Metric{
		Value:     current,
		Change:    change,
		Trend:     utils.ClassifyTrend(change, invertTrend),
		Sparkline: spark,
	}, nil
}

func (s *AnalyticsStore) scalar(ctx context.Context, expr string, start, end time.Time) (float64, error) {
	query := fmt.Sprintf(`
		SELECT toFloat64(%s)
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
	`, expr)

	var v float64
	if err := s.DB.Conn.QueryRow(ctx, query, start, end).Scan(&v); err != nil {
		return 0, fmt.Errorf("query scalar %q: %w", expr, err)
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}

// bounceMetric computes the share of single-page sessions; its trend is
// inverted because a falling bounce rate is favorable.
func (s *AnalyticsStore) bounceMetric(ctx context.Context, rng utils.TimeRange) (Metric, error) {
	current, err := s.bounceRate(ctx, rng.Start, rng.End)
	if err != nil {
		return Metric{}, err
	}
	previous, err := s.bounceRate(ctx, rng.PrevStart, rng.PrevEnd)
	if err != nil {
		return Metric{}, err
	}
	spark, err := s.bounceSparkline(ctx, rng)
	if err != nil {
		return Metric{}, err
	}

	change := utils.CalculateChange(current, previous)
	return Metric{
		Value:     current,
		Change:    change,
		Trend:     utils.ClassifyTrend(change, true),
		Sparkline: spark,
	}, nil
}

func (s *AnalyticsStore) bounceRate(ctx context.Context, start, end time.Time) (float64, error) {
	query := `
		SELECT if(count() = 0, 0.0, toFloat64(countIf(views = 1)) * 100 / toFloat64(count()))
		FROM (
			SELECT session_id, count() AS views
			FROM page_views
			WHERE created_at >= ? AND created_at < ?
			GROUP BY session_id
		)
	`

	var v float64
	if err := s.DB.Conn.QueryRow(ctx, query, start, end).Scan(&v); err != nil {
		return 0, fmt.Errorf("query bounce rate: %w", err)
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}

// sparkline returns the last 7 bucketed values of expr, zero-filled for
// empty buckets and ordered oldest to newest.
func (s *AnalyticsStore) sparkline(ctx context.Context, rng utils.TimeRange, expr string) ([]float64, error) {
	windowStart, _ := sparklineWindow(rng)

	query := fmt.Sprintf(`
		SELECT %s AS bucket, toFloat64(%s) AS v
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
		GROUP BY bucket
		ORDER BY bucket ASC
	`, bucketExpr("created_at", rng.Bucket), expr)

	rows, err := s.DB.Conn.Query(ctx, query, windowStart, rng.End)
	if err != nil {
		return nil, fmt.Errorf("query sparkline %q: %w", expr, err)
	}
	defer rows.Close()

	byBucket := make(map[int64]float64, utils.SparklineSize)
	for rows.Next() {
		var bucket time.Time
		var v float64
		if err := rows.Scan(&bucket, &v); err != nil {
			return nil, fmt.Errorf("scan sparkline row: %w", err)
		}
		byBucket[bucket.Unix()] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sparkline rows: %w", err)
	}

	return fillSparkline(rng, byBucket), nil
}

func (s *AnalyticsStore) bounceSparkline(ctx context.Context, rng utils.TimeRange) ([]float64, error) {
	windowStart, _ := sparklineWindow(rng)

	query := fmt.Sprintf(`
		SELECT %s AS bucket,
			toFloat64(countIf(views = 1)) * 100 / toFloat64(count()) AS v
		FROM (
			SELECT session_id, min(created_at) AS first_at, count() AS views
			FROM page_views
			WHERE created_at >= ? AND created_at < ?
			GROUP BY session_id
		)
		GROUP BY bucket
		ORDER BY bucket ASC
	`, bucketExpr("first_at", rng.Bucket))

	rows, err := s.DB.Conn.Query(ctx, query, windowStart, rng.End)
	if err != nil {
		return nil, fmt.Errorf("query bounce sparkline: %w", err)
	}
	defer rows.Close()

	byBucket := make(map[int64]float64, utils.SparklineSize)
	for rows.Next() {
		var bucket time.Time
		var v float64
		if err := rows.Scan(&bucket, &v); err != nil {
			return nil, fmt.Errorf("scan bounce sparkline row: %w", err)
		}
		if math.IsNaN(v) {
			v = 0
		}
		byBucket[bucket.Unix()] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bounce sparkline rows: %w", err)
	}

	return fillSparkline(rng, byBucket), nil
}

// Pages computes per-page metrics. The page counts and the session
// rollup are independent queries and run concurrently; rates are merged
// in Go so the math stays testable.
func (s *AnalyticsStore) Pages(ctx context.Context, rng utils.TimeRange, sortKey, order string) ([]PageMetrics, error) {
	var (
		counts  []pageCounts
		rollup  sessionRollup
		g, gctx = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		var err error
		counts, err = s.pageCounts(gctx, rng.Start, rng.End)
		return err
	})
	g.Go(func() error {
		var err error
		rollup, err = s.sessionRollup(gctx, rng.Start, rng.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := mergePageMetrics(counts, rollup)
	SortPages(pages, sortKey, order)
	return pages, nil
}

type pageCounts struct {
	path     string
	views    uint64
	visitors uint64
	sessions uint64
}

// sessionRollup summarizes sessions by their entry/exit page and whether
// they bounced.
type sessionRollup struct {
	total   uint64
	entries map[string]uint64
	exits   map[string]uint64
	bounces map[string]uint64
}

func (s *AnalyticsStore) pageCounts(ctx context.Context, start, end time.Time) ([]pageCounts, error) {
	query := `
		SELECT path, count() AS views, uniq(visitor_hash) AS visitors, uniq(session_id) AS sessions
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
		GROUP BY path
	`

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query page counts: %w", err)
	}
	defer rows.Close()

	var results []pageCounts
	for rows.Next() {
		var pc pageCounts
		if err := rows.Scan(&pc.path, &pc.views, &pc.visitors, &pc.sessions); err != nil {
			return nil, fmt.Errorf("scan page counts row: %w", err)
		}
		results = append(results, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page counts rows: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) sessionRollup(ctx context.Context, start, end time.Time) (sessionRollup, error) {
	query := `
		SELECT argMin(path, created_at) AS entry_path,
			argMax(path, created_at) AS exit_path,
			count() AS views
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
		GROUP BY session_id
	`

	rollup := sessionRollup{
		entries: make(map[string]uint64),
		exits:   make(map[string]uint64),
		bounces: make(map[string]uint64),
	}

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return rollup, fmt.Errorf("query session rollup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryPath, exitPath string
		var views uint64
		if err := rows.Scan(&entryPath, &exitPath, &views); err != nil {
			return rollup, fmt.Errorf("scan session rollup row: %w", err)
		}
		rollup.total++
		rollup.entries[entryPath]++
		rollup.exits[exitPath]++
		if views == 1 {
			rollup.bounces[entryPath]++
		}
	}
	if err := rows.Err(); err != nil {
		return rollup, fmt.Errorf("session rollup rows: %w", err)
	}
	return rollup, nil
}

// mergePageMetrics derives entry, exit and bounce rates per page:
// entry rate is this page's share of all session entries, exit rate the
// share of this page's sessions ending here, bounce rate the share of
// this page's entries that were single-page sessions.
func mergePageMetrics(counts []pageCounts, rollup sessionRollup) []PageMetrics {
	pages := make([]PageMetrics, 0, len(counts))
	for _, pc := range counts {
		pm := PageMetrics{
			Path:           pc.path,
			Views:          pc.views,
			UniqueVisitors: pc.visitors,
		}
		if rollup.total > 0 {
			pm.EntryRate = float64(rollup.entries[pc.path]) * 100 / float64(rollup.total)
		}
		if pc.sessions > 0 {
			pm.ExitRate = float64(rollup.exits[pc.path]) * 100 / float64(pc.sessions)
		}
		if entries := rollup.entries[pc.path]; entries > 0 {
			pm.BounceRate = float64(rollup.bounces[pc.path]) * 100 / float64(entries)
		}
		pages = append(pages, pm)
	}
	return pages
}

// SortPages orders pages by the requested key and direction. Unknown
// sort keys fall back to views; unknown orders fall back to descending.
func SortPages(pages []PageMetrics, sortKey, order string) {
	less := func(a, b PageMetrics) bool { return a.Views < b.Views }
	switch sortKey {
	case SortVisitors:
		less = func(a, b PageMetrics) bool { return a.UniqueVisitors < b.UniqueVisitors }
	case SortBounce:
		less = func(a, b PageMetrics) bool { return a.BounceRate < b.BounceRate }
	}

	asc := order == OrderAsc
	sort.SliceStable(pages, func(i, j int) bool {
		if asc {
			return less(pages[i], pages[j])
		}
		return less(pages[j], pages[i])
	})
}

// Realtime reports visitors active within the last five minutes and the
// most recent page views.
func (s *AnalyticsStore) Realtime(ctx context.Context) (*Realtime, error) {
	var rt Realtime

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query := `SELECT uniq(visitor_hash) FROM page_views WHERE created_at >= ?`
		since := time.Now().UTC().Add(-realtimeWindow)
		if err := s.DB.Conn.QueryRow(gctx, query, since).Scan(&rt.CurrentVisitors); err != nil {
			return fmt.Errorf("query current visitors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `
			SELECT path, device_type, country, created_at
			FROM page_views
			ORDER BY created_at DESC
			LIMIT ?
		`
		rows, err := s.DB.Conn.Query(gctx, query, uint64(recentVisitLimit))
		if err != nil {
			return fmt.Errorf("query recent visits: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rv RecentVisit
			if err := rows.Scan(&rv.Path, &rv.DeviceType, &rv.Country, &rv.CreatedAt); err != nil {
				return fmt.Errorf("scan recent visit row: %w", err)
			}
			rt.RecentVisits = append(rt.RecentVisits, rv)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &rt, nil
}

// Acquisition reports traffic sources: UTM sources, referrers, campaigns.
func (s *AnalyticsStore) Acquisition(ctx context.Context, rng utils.TimeRange) (*Acquisition, error) {
	var acq Acquisition

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.topValues(gctx, "utm_source", rng.Start, rng.End)
		acq.Sources = items
		return err
	})
	g.Go(func() error {
		items, err := s.topValues(gctx, "referrer", rng.Start, rng.End)
		acq.TopReferrers = items
		return err
	})
	g.Go(func() error {
		items, err := s.topValues(gctx, "utm_campaign", rng.Start, rng.End)
		acq.TopCampaigns = items
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &acq, nil
}

// Visitors reports device, browser, OS and geo breakdowns. Missing
// values surface as "unknown" rather than empty strings.
func (s *AnalyticsStore) Visitors(ctx context.Context, rng utils.TimeRange) (*VisitorBreakdown, error) {
	var vb VisitorBreakdown

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.breakdown(gctx, "device_type", rng.Start, rng.End)
		vb.Devices = items
		return err
	})
	g.Go(func() error {
		items, err := s.breakdown(gctx, "browser", rng.Start, rng.End)
		vb.Browsers = items
		return err
	})
	g.Go(func() error {
		items, err := s.breakdown(gctx, "os", rng.Start, rng.End)
		vb.OperatingSystems = items
		return err
	})
	g.Go(func() error {
		items, err := s.breakdown(gctx, "country", rng.Start, rng.End)
		vb.Countries = items
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &vb, nil
}

// topValues counts the non-empty values of a column, highest first.
// Column names come from fixed internal constants only.
func (s *AnalyticsStore) topValues(ctx context.Context, column string, start, end time.Time) ([]CountItem, error) {
	query := fmt.Sprintf(`
		SELECT %s AS name, count() AS cnt
		FROM page_views
		WHERE created_at >= ? AND created_at < ? AND %s != ''
		GROUP BY name
		ORDER BY cnt DESC
		LIMIT %d
	`, column, column, breakdownLimit)

	return s.countItems(ctx, query, start, end)
}

// breakdown counts all values of a column, mapping empty to "unknown".
func (s *AnalyticsStore) breakdown(ctx context.Context, column string, start, end time.Time) ([]CountItem, error) {
	query := fmt.Sprintf(`
		SELECT if(%s = '', 'unknown', %s) AS name, count() AS cnt
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
		GROUP BY name
		ORDER BY cnt DESC
		LIMIT %d
	`, column, column, breakdownLimit)

	return s.countItems(ctx, query, start, end)
}

func (s *AnalyticsStore) countItems(ctx context.Context, query string, start, end time.Time) ([]CountItem, error) {
	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	var items []CountItem
	for rows.Next() {
		var item CountItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("breakdown rows: %w", err)
	}
	return items, nil
}

// ExportPageViews returns all page views in the window ordered by time,
// for CSV export.
func (s *AnalyticsStore) ExportPageViews(ctx context.Context, from, to time.Time) ([]models.PageView, error) {
	query := `
		SELECT path, referrer, utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			session_id, visitor_hash, device_type, browser, browser_version,
			os, os_version, country, city, region, user_agent, created_at
		FROM page_views
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`

	rows, err := s.DB.Conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query export: %w", err)
	}
	defer rows.Close()

	var views []models.PageView
	for rows.Next() {
		var pv models.PageView
		if err := rows.Scan(
			&pv.Path, &pv.Referrer, &pv.UTMSource, &pv.UTMMedium, &pv.UTMCampaign, &pv.UTMContent, &pv.UTMTerm,
			&pv.SessionID, &pv.VisitorHash, &pv.DeviceType, &pv.Browser, &pv.BrowserVersion,
			&pv.OS, &pv.OSVersion, &pv.Country, &pv.City, &pv.Region, &pv.UserAgent, &pv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		views = append(views, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	return views, nil
}

func bucketFunction(bucket string) string {
	if bucket == utils.BucketHour {
		return "toStartOfHour"
	}
	return "toStartOfDay"
}

// bucketExpr truncates a timestamp column in UTC. Without the explicit
// timezone ClickHouse truncates in the server timezone and the results
// never match the UTC bucket grid built in Go.
func bucketExpr(column, bucket string) string {
	return fmt.Sprintf("%s(%s, 'UTC')", bucketFunction(bucket), column)
}

// sparklineWindow returns the time bounds covering the last 7 buckets.
// The lower bound never reaches before the range start, so a young range
// (today, shortly after midnight) keeps its leading buckets zero instead
// of picking up the previous day's traffic.
func sparklineWindow(rng utils.TimeRange) (time.Time, time.Time) {
	step := rng.BucketStep()
	last := truncateBucket(rng.End, rng.Bucket)
	start := last.Add(-time.Duration(utils.SparklineSize-1) * step)
	if start.Before(rng.Start) {
		start = rng.Start
	}
	return start, rng.End
}

// fillSparkline maps bucketed values onto a fixed 7-slot grid, zero
// values standing in for empty buckets, ordered oldest to newest.
func fillSparkline(rng utils.TimeRange, byBucket map[int64]float64) []float64 {
	step := rng.BucketStep()
	last := truncateBucket(rng.End, rng.Bucket)

	values := make([]float64, utils.SparklineSize)
	for i := 0; i < utils.SparklineSize; i++ {
		bucket := last.Add(-time.Duration(utils.SparklineSize-1-i) * step)
		values[i] = byBucket[bucket.Unix()]
	}
	return values
}

func truncateBucket(t time.Time, bucket string) time.Time {
	t = t.UTC()
	if bucket == utils.BucketHour {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
