package analysis

import (
	"fmt"
	"math"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

type BudgetParams struct {
	// OnTargetTolerance is the percentage band (either side of budget)
	// classified as on-target rather than favorable/unfavorable.
	OnTargetTolerance float64 `json:"onTargetTolerance"`
}

func DefaultBudgetParams() BudgetParams {
	return BudgetParams{OnTargetTolerance: 2.0}
}

type BudgetPeriod struct {
	Period         string  `json:"period"`
	Actual         float64 `json:"actual"`
	Budget         float64 `json:"budget"`
	Variance       float64 `json:"variance"`
	PctVariance    float64 `json:"pctVariance"`
	Classification string  `json:"classification"` // favorable, unfavorable, on-target
}

type BudgetResult struct {
	Periods          []BudgetPeriod `json:"periods"`
	TotalActual      float64        `json:"totalActual"`
	TotalBudget      float64        `json:"totalBudget"`
	TotalVariance    float64        `json:"totalVariance"`
	TotalPctVariance float64        `json:"totalPctVariance"`
	FavorableCount   int            `json:"favorableCount"`
	UnfavorableCount int            `json:"unfavorableCount"`
	OnTargetCount    int            `json:"onTargetCount"`
	PerformanceScore float64        `json:"performanceScore"` // 0-100
	Overall          string         `json:"overall"`
}

// AnalyzeBudgetVariance compares actuals to budgets per period. A zero
// budget in any period is a hard input error so percentage variance never
// divides by zero and no partial result escapes.
func AnalyzeBudgetVariance(d *dataset.Dataset, b Bindings, p BudgetParams) (*BudgetResult, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: provide rows with actual and budget values", ErrEmptyDataset)
	}

	actualCol := b.Column(profile.RoleActual)
	if actualCol == "" {
		actualCol = b.Column(profile.RoleValue)
	}
	budgetCol := b.Column(profile.RoleBudget)
	if actualCol == "" || budgetCol == "" {
		return nil, fmt.Errorf("%w: budget variance needs both an actual and a budget column; bind the missing one", ErrMissingBinding)
	}

	if p.OnTargetTolerance <= 0 {
		p.OnTargetTolerance = 2.0
	}

	records := collectRecords(d, b.Column(profile.RoleDate), actualCol, budgetCol)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows had numeric values in both %q and %q", ErrInsufficientData, actualCol, budgetCol)
	}

	result := &BudgetResult{}
	for _, rec := range records {
		if rec.secondary == 0 {
			return nil, fmt.Errorf("%w: period %q has budget 0, so percentage variance is undefined; correct the budget figure or exclude the period",
				ErrZeroBudget, rec.label)
		}

		variance := rec.value - rec.secondary
		pct := variance / rec.secondary * 100

		period := BudgetPeriod{
			Period:      rec.label,
			Actual:      rec.value,
			Budget:      rec.secondary,
			Variance:    variance,
			PctVariance: round2(pct),
		}

		switch {
		case math.Abs(pct) < p.OnTargetTolerance:
			period.Classification = "on-target"
			result.OnTargetCount++
		case variance > 0:
			period.Classification = "favorable"
			result.FavorableCount++
		default:
			period.Classification = "unfavorable"
			result.UnfavorableCount++
		}

		result.TotalActual += rec.value
		result.TotalBudget += rec.secondary
		result.Periods = append(result.Periods, period)
	}

	result.TotalVariance = result.TotalActual - result.TotalBudget
	// Mixed-sign budgets can cancel to a zero total even though every period
	// budget is nonzero; the aggregate percentage is undefined there.
	if result.TotalBudget != 0 {
		result.TotalPctVariance = round2(result.TotalVariance / result.TotalBudget * 100)
	}
	result.PerformanceScore = performanceScore(result)
	result.Overall = overallBudgetLabel(result)

	return result, nil
}

// performanceScore blends the favorable-period ratio, the on-target ratio,
// and a penalty proportional to how far total actuals drifted from total
// budget, clamped to 0-100.
func performanceScore(r *BudgetResult) float64 {
	n := float64(len(r.Periods))
	favorableRatio := float64(r.FavorableCount) / n
	onTargetRatio := float64(r.OnTargetCount) / n

	score := favorableRatio*70 + onTargetRatio*50
	score -= math.Min(30, math.Abs(r.TotalPctVariance))

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return round2(score)
}

func overallBudgetLabel(r *BudgetResult) string {
	switch {
	case r.FavorableCount > r.UnfavorableCount:
		return "favorable"
	case r.UnfavorableCount > r.FavorableCount:
		return "unfavorable"
	default:
		return "mixed"
	}
}
