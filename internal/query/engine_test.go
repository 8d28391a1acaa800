package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/analysis"
	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/intent"
	"github.com/data-agent/backend/internal/profile"
)

// salesDataset has one clear column per role so parsing never needs
// clarification.
func salesDataset(n int) *dataset.Dataset {
	months := []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01", "2024-07-01", "2024-08-01"}
	regions := []string{"East", "West"}

	rows := make([]dataset.Row, n)
	for i := 0; i < n; i++ {
		rows[i] = dataset.Row{
			"date":    months[i%len(months)],
			"revenue": 100.0 + float64(i)*10,
			"region":  regions[i%2],
		}
	}
	return dataset.NewWithColumns([]string{"date", "revenue", "region"}, rows)
}

func TestProcessQueryOutlier(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)

	resp, err := e.ProcessQuery(context.Background(), Request{
		Query:   "show outliers in revenue",
		Dataset: salesDataset(6),
	})
	require.NoError(t, err)

	assert.Equal(t, intent.ActionAnalyze, resp.Action)
	assert.Equal(t, intent.TypeOutlier, resp.AnalysisType)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 6, resp.TotalRows)
	assert.Zero(t, resp.SampledRows)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "outlier", resp.Results[0].Kind)
	assert.True(t, resp.Results[0].Success)
	assert.NotEmpty(t, resp.Narrative)
}

func TestProcessQueryCacheHit(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	first, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := e.ProcessQuery(context.Background(), Request{Query: "  SHOW outliers   in revenue ", Dataset: ds})
	require.NoError(t, err)
	assert.True(t, second.CacheHit, "normalized repeat should hit the cache")
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Results, len(first.Results))
}

func TestProcessQueryClarificationNotCached(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	for i := 0; i < 2; i++ {
		resp, err := e.ProcessQuery(context.Background(), Request{Query: "make me a sandwich", Dataset: ds})
		require.NoError(t, err)
		assert.False(t, resp.CacheHit, "attempt %d", i)
		require.NotNil(t, resp.Clarification)
		assert.NotEmpty(t, resp.Clarification.Reason)
		assert.Empty(t, resp.Results)
	}
}

func TestProcessQueryInputErrors(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)

	_, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers"})
	assert.True(t, errors.Is(err, analysis.ErrEmptyDataset))

	empty := dataset.NewWithColumns([]string{"revenue"}, nil)
	_, err = e.ProcessQuery(context.Background(), Request{Query: "show outliers", Dataset: empty})
	assert.True(t, errors.Is(err, analysis.ErrEmptyDataset))

	_, err = e.ProcessQuery(context.Background(), Request{Query: "   ", Dataset: salesDataset(6)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query text is required")
}

func TestProcessQuerySummarizeFanOut(t *testing.T) {
	rows := make([]dataset.Row, 6)
	months := []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"}
	for i := range rows {
		rows[i] = dataset.Row{
			"date":          months[i],
			"sales_revenue": 100.0 + float64(i)*5,
			"budget":        100.0,
			"actual":        98.0 + float64(i)*5,
			"region":        []string{"East", "West"}[i%2],
		}
	}
	ds := dataset.NewWithColumns([]string{"date", "sales_revenue", "budget", "actual", "region"}, rows)

	e := NewEngine(DefaultParams(), nil, nil)
	resp, err := e.ProcessQuery(context.Background(), Request{Query: "give me a summary", Dataset: ds})
	require.NoError(t, err)

	assert.Equal(t, intent.ActionSummarize, resp.Action)
	require.Nil(t, resp.Clarification)

	kinds := make(map[string]bool)
	for _, r := range resp.Results {
		kinds[r.Kind] = true
		assert.True(t, r.Success, "analyzer %s: %s", r.Kind, r.Error)
	}
	for _, want := range []string{"outlier", "budget_variance", "period_variance", "trend", "contribution"} {
		assert.True(t, kinds[want], "missing %s", want)
	}
}

func TestProcessQueryExploreNotCached(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	for i := 0; i < 2; i++ {
		resp, err := e.ProcessQuery(context.Background(), Request{Query: "what columns do I have", Dataset: ds})
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
		assert.Equal(t, intent.ActionExplore, resp.Action)
		assert.Len(t, resp.Profiles, 3)
		assert.Empty(t, resp.Results)
	}
}

func TestProcessQuerySamplesLargeDatasets(t *testing.T) {
	params := DefaultParams()
	params.SamplingThreshold = 5
	params.TargetSampleSize = 4

	e := NewEngine(params, nil, nil)
	resp, err := e.ProcessQuery(context.Background(), Request{
		Query:   "show outliers in revenue",
		Dataset: salesDataset(8),
	})
	require.NoError(t, err)

	assert.Equal(t, 8, resp.TotalRows)
	assert.Equal(t, 4, resp.SampledRows)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
}

func TestProcessQueryExplicitBindingsWithdrawClarification(t *testing.T) {
	// Two equally plausible date columns make the trend intent ambiguous.
	months := []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01", "2024-06-01"}
	rows := make([]dataset.Row, 6)
	for i := range rows {
		rows[i] = dataset.Row{
			"order_date": months[i],
			"ship_date":  months[i],
			"revenue":    100.0 + float64(i)*10,
		}
	}
	ds := dataset.NewWithColumns([]string{"order_date", "ship_date", "revenue"}, rows)

	e := NewEngine(DefaultParams(), nil, nil)

	resp, err := e.ProcessQuery(context.Background(), Request{Query: "show me trends", Dataset: ds})
	require.NoError(t, err)
	require.NotNil(t, resp.Clarification)
	assert.Contains(t, resp.Clarification.Options[profile.RoleDate], "order_date")
	assert.Contains(t, resp.Clarification.Options[profile.RoleDate], "ship_date")

	resp, err = e.ProcessQuery(context.Background(), Request{
		Query:    "show me trends",
		Dataset:  ds,
		Bindings: analysis.Bindings{profile.RoleDate: "order_date"},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Clarification)
	assert.Equal(t, intent.ActionAnalyze, resp.Action)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "trend", resp.Results[0].Kind)
	assert.True(t, resp.Results[0].Success)
}

func TestProcessQueryAnalyzerFailureIsCarriedNotFatal(t *testing.T) {
	// Three rows is below the outlier minimum; the response still succeeds
	// with a failed result carrying the remedy.
	e := NewEngine(DefaultParams(), nil, nil)

	resp, err := e.ProcessQuery(context.Background(), Request{
		Query:   "show outliers in revenue",
		Dataset: salesDataset(3),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.False(t, resp.Results[0].Success)
	assert.NotEmpty(t, resp.Results[0].Error)
	assert.NotEmpty(t, resp.Narrative)
}

func revenueDataset(values ...float64) *dataset.Dataset {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		rows[i] = dataset.Row{"revenue": v}
	}
	return dataset.NewWithColumns([]string{"revenue"}, rows)
}

func TestProcessQueryCacheScopedToDataset(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	spiky := revenueDataset(10, 12, 11, 13, 12, 11, 100)
	clean := revenueDataset(10, 11, 12, 11, 10, 12, 11)

	first, err := e.ProcessQuery(context.Background(), Request{Query: "find outliers in revenue", Dataset: spiky})
	require.NoError(t, err)
	require.True(t, first.Results[0].Success)
	assert.Equal(t, 1, first.Results[0].Outlier.OutlierCount)

	// Same question against different rows must not reuse the entry.
	second, err := e.ProcessQuery(context.Background(), Request{Query: "find outliers in revenue", Dataset: clean})
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	require.True(t, second.Results[0].Success)
	assert.Equal(t, 0, second.Results[0].Outlier.OutlierCount)
}

func TestProcessQueryCacheScopedToFingerprint(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	_, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds, Fingerprint: "v1"})
	require.NoError(t, err)

	repeat, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds, Fingerprint: "v1"})
	require.NoError(t, err)
	assert.True(t, repeat.CacheHit)

	// A re-upload changes the fingerprint; the old entry no longer applies.
	reuploaded, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds, Fingerprint: "v2"})
	require.NoError(t, err)
	assert.False(t, reuploaded.CacheHit)
}

func TestProcessQueryCacheScopedToBindings(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	_, err := e.ProcessQuery(context.Background(), Request{Query: "show the revenue trend", Dataset: ds, Fingerprint: "v1"})
	require.NoError(t, err)

	// Explicit column choices change the computation, so they key the cache.
	rebound, err := e.ProcessQuery(context.Background(), Request{
		Query:       "show the revenue trend",
		Dataset:     ds,
		Fingerprint: "v1",
		Bindings:    analysis.Bindings{profile.RoleValue: "revenue"},
	})
	require.NoError(t, err)
	assert.False(t, rebound.CacheHit)
}

func TestProcessQueryCachedEntryImmuneToCallerMutation(t *testing.T) {
	e := NewEngine(DefaultParams(), nil, nil)
	ds := salesDataset(6)

	first, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds, Fingerprint: "v1"})
	require.NoError(t, err)

	original := first.Narrative
	first.Narrative = "reworded after the fact"

	second, err := e.ProcessQuery(context.Background(), Request{Query: "show outliers in revenue", Dataset: ds, Fingerprint: "v1"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, original, second.Narrative)
}
