package utils

import "time"

// Range tokens accepted by the aggregation endpoints.
const (
	RangeToday   = "today"
	Range7d      = "7d"
	Range30d     = "30d"
	Range90d     = "90d"
	DefaultRange = Range7d
)

// Bucket granularities for sparkline series.
const (
	BucketHour = "hour"
	BucketDay  = "day"
)

// SparklineSize is the number of buckets returned for chart sparklines.
const SparklineSize = 7

// TimeRange is a resolved aggregation window plus the previous period of
// equal length used for trend comparison.
type TimeRange struct {
	Token     string
	Start     time.Time
	End       time.Time
	PrevStart time.Time
	PrevEnd   time.Time
	Bucket    string
}

// ResolveRange maps a range token to a concrete window ending at now.
// Unrecognized tokens fall back to the default 7d range.
func ResolveRange(token string, now time.Time) TimeRange {
	now = now.UTC()

	var start time.Time
	bucket := BucketDay

	switch token {
	case RangeToday:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		bucket = BucketHour
	case Range7d:
		start = now.Add(-7 * 24 * time.Hour)
	case Range30d:
		start = now.Add(-30 * 24 * time.Hour)
	case Range90d:
		start = now.Add(-90 * 24 * time.Hour)
	default:
		token = DefaultRange
		start = now.Add(-7 * 24 * time.Hour)
	}

	length := now.Sub(start)

	return TimeRange{
		Token:     token,
		Start:     start,
		End:       now,
		PrevStart: start.Add(-length),
		PrevEnd:   start,
		Bucket:    bucket,
	}
}

// BucketStep returns the duration of one sparkline bucket.
func (r TimeRange) BucketStep() time.Duration {
	if r.Bucket == BucketHour {
		return time.Hour
	}
	return 24 * time.Hour
}
