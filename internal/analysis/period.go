package analysis

import (
	"fmt"
	"math"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

type PeriodParams struct {
	// PeriodType labels the comparison for the narrative: "week-over-week",
	// "month-over-month", etc. It does not re-bucket the data; consecutive
	// rows are compared as supplied after chronological sorting.
	PeriodType string `json:"periodType"`

	// StableTolerance is the absolute percentage change below which a pair
	// is classified stable rather than increase/decrease.
	StableTolerance float64 `json:"stableTolerance"`
}

func DefaultPeriodParams() PeriodParams {
	return PeriodParams{PeriodType: "period-over-period", StableTolerance: 0.5}
}

type PeriodChange struct {
	FromPeriod  string  `json:"fromPeriod"`
	ToPeriod    string  `json:"toPeriod"`
	Previous    float64 `json:"previous"`
	Current     float64 `json:"current"`
	Variance    float64 `json:"variance"`
	PctVariance float64 `json:"pctVariance"`
	Direction   string  `json:"direction"` // increase, decrease, stable
}

type PeriodResult struct {
	PeriodType    string         `json:"periodType"`
	Changes       []PeriodChange `json:"changes"`
	IncreaseCount int            `json:"increaseCount"`
	DecreaseCount int            `json:"decreaseCount"`
	StableCount   int            `json:"stableCount"`
	SkippedZero   int            `json:"skippedZero"` // pairs skipped: prior value was zero
	OverallTrend  string         `json:"overallTrend"`
}

// AnalyzePeriodVariance computes change between consecutive periods of a
// chronologically sorted series. Pairs whose prior value is zero are
// skipped, not failed: a single zero row should not sink the whole series.
func AnalyzePeriodVariance(d *dataset.Dataset, b Bindings, p PeriodParams) (*PeriodResult, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: provide a series of dated values", ErrEmptyDataset)
	}

	valueCol := b.Column(profile.RoleValue)
	if valueCol == "" {
		valueCol = b.Column(profile.RoleActual)
	}
	if valueCol == "" {
		return nil, fmt.Errorf("%w: period variance needs a numeric value column", ErrMissingBinding)
	}

	if p.StableTolerance <= 0 {
		p.StableTolerance = 0.5
	}
	if p.PeriodType == "" {
		p.PeriodType = "period-over-period"
	}

	records := collectRecords(d, b.Column(profile.RoleDate), valueCol, "")
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: period-over-period comparison needs at least 2 data points, got %d; supply more rows",
			ErrInsufficientData, len(records))
	}
	sortChronologically(records)

	result := &PeriodResult{PeriodType: p.PeriodType}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.value == 0 {
			result.SkippedZero++
			continue
		}

		variance := cur.value - prev.value
		pct := variance / prev.value * 100

		change := PeriodChange{
			FromPeriod:  prev.label,
			ToPeriod:    cur.label,
			Previous:    prev.value,
			Current:     cur.value,
			Variance:    variance,
			PctVariance: round2(pct),
		}

		switch {
		case math.Abs(pct) < p.StableTolerance:
			change.Direction = "stable"
			result.StableCount++
		case variance > 0:
			change.Direction = "increase"
			result.IncreaseCount++
		default:
			change.Direction = "decrease"
			result.DecreaseCount++
		}

		result.Changes = append(result.Changes, change)
	}

	result.OverallTrend = overallTrendLabel(result)
	return result, nil
}

func overallTrendLabel(r *PeriodResult) string {
	switch {
	case r.IncreaseCount > 0 && r.DecreaseCount == 0 && r.StableCount == 0:
		return "Consistently Positive"
	case r.DecreaseCount > 0 && r.IncreaseCount == 0 && r.StableCount == 0:
		return "Consistently Negative"
	case r.IncreaseCount > r.DecreaseCount:
		return "Generally Positive"
	case r.DecreaseCount > r.IncreaseCount:
		return "Generally Negative"
	case r.StableCount > r.IncreaseCount+r.DecreaseCount:
		return "Stable"
	default:
		return "Mixed"
	}
}
