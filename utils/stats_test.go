package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"webfolio/api/utils"
)

func TestCalculateChange(t *testing.T) {
	assert.Equal(t, 0.0, utils.CalculateChange(0, 0))
	assert.Equal(t, 100.0, utils.CalculateChange(10, 0))
	assert.Equal(t, 50.0, utils.CalculateChange(150, 100))
	assert.Equal(t, -50.0, utils.CalculateChange(50, 100))
}

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, utils.TrendUp, utils.ClassifyTrend(0.6, false))
	assert.Equal(t, utils.TrendDown, utils.ClassifyTrend(-0.6, false))
	assert.Equal(t, utils.TrendNeutral, utils.ClassifyTrend(0.2, false))
	assert.Equal(t, utils.TrendNeutral, utils.ClassifyTrend(-0.5, false))
	assert.Equal(t, utils.TrendNeutral, utils.ClassifyTrend(0.5, false))
}

func TestClassifyTrend_Inverted(t *testing.T) {
	// A falling bounce rate is favorable.
	assert.Equal(t, utils.TrendUp, utils.ClassifyTrend(-0.6, true))
	assert.Equal(t, utils.TrendDown, utils.ClassifyTrend(0.6, true))
	assert.Equal(t, utils.TrendNeutral, utils.ClassifyTrend(0.2, true))
}

func TestPadSparkline_PadsShortSeries(t *testing.T) {
	got := utils.PadSparkline([]float64{3, 5, 2}, 7)

	assert.Len(t, got, 7)
	assert.Equal(t, []float64{0, 0, 0, 0, 3, 5, 2}, got)
}

func TestPadSparkline_TrimsLongSeries(t *testing.T) {
	got := utils.PadSparkline([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 7)

	assert.Equal(t, []float64{3, 4, 5, 6, 7, 8, 9}, got)
}

func TestPadSparkline_ExactSize(t *testing.T) {
	in := []float64{1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, in, utils.PadSparkline(in, 7))
}
