package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeTrendSimpleMovingAverage(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01"},
		[]float64{10, 20, 30, 40, 50},
	)

	res, err := AnalyzeTrend(ds, seriesBindings(), DefaultTrendParams())
	require.NoError(t, err)
	require.Len(t, res.Points, 5)

	// The average only reports once the window has filled.
	assert.False(t, res.Points[0].HasAverage)
	assert.False(t, res.Points[1].HasAverage)
	assert.True(t, res.Points[2].HasAverage)

	assert.InDelta(t, 20.0, res.Points[2].MovingAvg, 1e-9)
	assert.InDelta(t, 30.0, res.Points[3].MovingAvg, 1e-9)
	assert.InDelta(t, 40.0, res.Points[4].MovingAvg, 1e-9)

	assert.InDelta(t, 50.0, res.Points[2].DeviationPct, 1e-9)
	assert.Equal(t, "upward", res.Points[2].Direction)
	assert.Equal(t, "strong", res.Points[2].Strength)
	assert.Equal(t, "upward", res.OverallDirection)
}

func TestAnalyzeTrendExponentialMode(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01"},
		[]float64{100, 100, 100, 100},
	)

	p := TrendParams{WindowSize: 3, Mode: ExponentialAverage}
	res, err := AnalyzeTrend(ds, seriesBindings(), p)
	require.NoError(t, err)

	assert.Equal(t, ExponentialAverage, res.Mode)
	// A flat series stays on its average in either mode.
	assert.InDelta(t, 100.0, res.Points[3].MovingAvg, 1e-9)
	assert.Equal(t, "stable", res.OverallDirection)
	assert.Equal(t, 0.0, res.Volatility)
}

func TestAnalyzeTrendMomentumDecelerating(t *testing.T) {
	// Deviations shrink toward the end of the series.
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01"},
		[]float64{10, 20, 30, 40, 50},
	)

	res, err := AnalyzeTrend(ds, seriesBindings(), DefaultTrendParams())
	require.NoError(t, err)
	assert.Equal(t, "decelerating", res.Momentum)
}

func TestAnalyzeTrendWindowValidation(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01"},
		[]float64{1, 2, 3},
	)

	for _, window := range []int{1, 21, -3} {
		_, err := AnalyzeTrend(ds, seriesBindings(), TrendParams{WindowSize: window})
		assert.ErrorIs(t, err, ErrInvalidParameter, "window %d", window)
	}
}

func TestAnalyzeTrendNeedsWindowPoints(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01"},
		[]float64{1, 2},
	)

	_, err := AnalyzeTrend(ds, seriesBindings(), TrendParams{WindowSize: 3})
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "shrink the window")
}

func TestAnalyzeTrendScoreWithinBounds(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"},
		[]float64{100, 250, 80, 300, 90, 260},
	)

	res, err := AnalyzeTrend(ds, seriesBindings(), DefaultTrendParams())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.TrendScore, 0.0)
	assert.LessOrEqual(t, res.TrendScore, 100.0)
	assert.Greater(t, res.Volatility, 0.0)
}
