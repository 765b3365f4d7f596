package utils

// Trend labels returned to the dashboard.
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// trendThreshold is the percent change below which movement is noise.
const trendThreshold = 0.5

// CalculateChange returns the percent change from previous to current.
// A zero previous value with a positive current reads as +100; two zeros
// read as no change.
func CalculateChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// ClassifyTrend maps a percent change to up/down/neutral. When invert is
// true a decrease counts as favorable (bounce rate behaves this way).
func ClassifyTrend(change float64, invert bool) string {
	if invert {
		change = -change
	}
	switch {
	case change > trendThreshold:
		return TrendUp
	case change < -trendThreshold:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// PadSparkline trims a bucketed series to the most recent size entries and
// left-pads it with zeros when fewer exist. Input and output are ordered
// oldest to newest.
func PadSparkline(values []float64, size int) []float64 {
	if len(values) > size {
		values = values[len(values)-size:]
	}
	if len(values) == size {
		return values
	}
	padded := make([]float64, size)
	copy(padded[size-len(values):], values)
	return padded
}
