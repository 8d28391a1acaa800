package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

func valueDataset(values ...float64) *dataset.Dataset {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		rows[i] = dataset.Row{"amount": v}
	}
	return dataset.NewWithColumns([]string{"amount"}, rows)
}

func TestDetectOutliersFlagsSpike(t *testing.T) {
	ds := valueDataset(10, 12, 11, 13, 12, 11, 100)
	b := Bindings{profile.RoleValue: "amount"}

	res, err := DetectOutliers(ds, b, DefaultOutlierParams())
	require.NoError(t, err)

	assert.Equal(t, 1, res.OutlierCount)
	assert.Equal(t, 1, res.UpperCount)
	assert.Equal(t, 0, res.LowerCount)

	spike := res.Points[len(res.Points)-1]
	assert.True(t, spike.Flagged)
	assert.True(t, spike.ByIQR)
	assert.True(t, spike.ByZScore)
	assert.Equal(t, "upper", spike.Direction)
	assert.Equal(t, "extreme", spike.Severity)
	assert.Equal(t, 1, res.ExtremeCount)

	// 1 of 7 points flagged sits in the high band.
	assert.Equal(t, "high", res.RiskLevel)
}

func TestDetectOutliersCleanSeries(t *testing.T) {
	ds := valueDataset(10, 11, 12, 11, 10, 12, 11)
	b := Bindings{profile.RoleValue: "amount"}

	res, err := DetectOutliers(ds, b, DefaultOutlierParams())
	require.NoError(t, err)

	assert.Equal(t, 0, res.OutlierCount)
	assert.Equal(t, "low", res.RiskLevel)
}

func TestBothMethodFlagsSupersetOfEach(t *testing.T) {
	ds := valueDataset(5, 10, 12, 11, 13, 12, 11, 45, 90, 12, 11, 10)
	b := Bindings{profile.RoleValue: "amount"}

	flagged := func(method OutlierMethod) map[string]bool {
		p := DefaultOutlierParams()
		p.Method = method
		res, err := DetectOutliers(ds, b, p)
		require.NoError(t, err)
		set := make(map[string]bool)
		for _, pt := range res.Points {
			if pt.Flagged {
				set[pt.Label] = true
			}
		}
		return set
	}

	both := flagged(MethodBoth)
	for label := range flagged(MethodIQR) {
		assert.True(t, both[label], "IQR-flagged %s missing from both", label)
	}
	for label := range flagged(MethodZScore) {
		assert.True(t, both[label], "Z-flagged %s missing from both", label)
	}
}

func TestDetectOutliersVarianceTarget(t *testing.T) {
	rows := []dataset.Row{
		{"actual": 100.0, "budget": 100.0},
		{"actual": 102.0, "budget": 100.0},
		{"actual": 98.0, "budget": 100.0},
		{"actual": 101.0, "budget": 100.0},
		{"actual": 250.0, "budget": 100.0}, // variance spike
		{"actual": 99.0, "budget": 100.0},
	}
	ds := dataset.NewWithColumns([]string{"actual", "budget"}, rows)
	b := Bindings{profile.RoleActual: "actual", profile.RoleBudget: "budget"}

	p := DefaultOutlierParams()
	p.Target = TargetVariance

	res, err := DetectOutliers(ds, b, p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OutlierCount)
	assert.InDelta(t, 150.0, res.Points[4].Value, 1e-9)
}

func TestDetectOutliersVarianceTargetNeedsBudget(t *testing.T) {
	ds := valueDataset(1, 2, 3, 4, 5)
	b := Bindings{profile.RoleValue: "amount"}

	p := DefaultOutlierParams()
	p.Target = TargetVariance

	_, err := DetectOutliers(ds, b, p)
	assert.ErrorIs(t, err, ErrMissingBinding)
}

func TestDetectOutliersErrors(t *testing.T) {
	tests := []struct {
		name string
		ds   *dataset.Dataset
		b    Bindings
		want error
	}{
		{"empty dataset", valueDataset(), Bindings{profile.RoleValue: "amount"}, ErrEmptyDataset},
		{"no binding", valueDataset(1, 2, 3, 4, 5), Bindings{}, ErrMissingBinding},
		{"too few points", valueDataset(1, 2, 3), Bindings{profile.RoleValue: "amount"}, ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetectOutliers(tt.ds, tt.b, DefaultOutlierParams())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDetectOutliersSkipsNonNumericRows(t *testing.T) {
	rows := []dataset.Row{
		{"amount": "10"}, {"amount": "12"}, {"amount": "n/a"},
		{"amount": "11"}, {"amount": "13"}, {"amount": ""},
	}
	ds := dataset.NewWithColumns([]string{"amount"}, rows)
	b := Bindings{profile.RoleValue: "amount"}

	res, err := DetectOutliers(ds, b, DefaultOutlierParams())
	require.NoError(t, err)
	assert.Len(t, res.Points, 4)
}

func TestDetectOutliersErrorNamesColumn(t *testing.T) {
	ds := valueDataset(1, 2, 3)
	b := Bindings{profile.RoleValue: "amount"}

	_, err := DetectOutliers(ds, b, DefaultOutlierParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("%q", "amount"))
}
