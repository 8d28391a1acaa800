package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

func seriesDataset(dates []string, values []float64) *dataset.Dataset {
	rows := make([]dataset.Row, len(values))
	for i := range values {
		rows[i] = dataset.Row{"date": dates[i], "sales": values[i]}
	}
	return dataset.NewWithColumns([]string{"date", "sales"}, rows)
}

func seriesBindings() Bindings {
	return Bindings{profile.RoleDate: "date", profile.RoleValue: "sales"}
}

func TestAnalyzePeriodVarianceWeeklySeries(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29"},
		[]float64{100, 110, 120, 130, 125},
	)

	res, err := AnalyzePeriodVariance(ds, seriesBindings(), DefaultPeriodParams())
	require.NoError(t, err)
	require.Len(t, res.Changes, 4)

	assert.Equal(t, 3, res.IncreaseCount)
	assert.Equal(t, 1, res.DecreaseCount)
	assert.Equal(t, 0, res.StableCount)
	assert.Equal(t, "Generally Positive", res.OverallTrend)

	assert.InDelta(t, 10.0, res.Changes[0].PctVariance, 1e-9)
	assert.Equal(t, "increase", res.Changes[0].Direction)
	assert.Equal(t, "decrease", res.Changes[3].Direction)
	assert.InDelta(t, -3.85, res.Changes[3].PctVariance, 0.01)
}

func TestAnalyzePeriodVarianceSortsChronologically(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-03-01", "2024-01-01", "2024-02-01"},
		[]float64{300, 100, 200},
	)

	res, err := AnalyzePeriodVariance(ds, seriesBindings(), DefaultPeriodParams())
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)

	assert.Equal(t, "2024-01-01", res.Changes[0].FromPeriod)
	assert.Equal(t, "2024-02-01", res.Changes[0].ToPeriod)
	assert.Equal(t, "Consistently Positive", res.OverallTrend)
}

func TestAnalyzePeriodVarianceSkipsZeroPrevious(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01"},
		[]float64{100, 0, 50},
	)

	res, err := AnalyzePeriodVariance(ds, seriesBindings(), DefaultPeriodParams())
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedZero)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "decrease", res.Changes[0].Direction)
	assert.InDelta(t, -100.0, res.Changes[0].PctVariance, 1e-9)
}

func TestAnalyzePeriodVarianceStableBand(t *testing.T) {
	ds := seriesDataset(
		[]string{"2024-01-01", "2024-02-01", "2024-03-01"},
		[]float64{1000, 1001, 1002}, // ~0.1% changes
	)

	res, err := AnalyzePeriodVariance(ds, seriesBindings(), DefaultPeriodParams())
	require.NoError(t, err)

	assert.Equal(t, 2, res.StableCount)
	assert.Equal(t, "Stable", res.OverallTrend)
}

func TestAnalyzePeriodVarianceNeedsTwoPoints(t *testing.T) {
	ds := seriesDataset([]string{"2024-01-01"}, []float64{100})

	_, err := AnalyzePeriodVariance(ds, seriesBindings(), DefaultPeriodParams())
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "at least 2")
}
