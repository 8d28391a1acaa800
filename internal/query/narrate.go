package query

import (
	"fmt"
	"strings"

	"github.com/data-agent/backend/internal/analysis"
	"github.com/data-agent/backend/internal/profile"
)

// Narration assembles short plain-language summaries from analyzer results.
// No markup is emitted here; the presentation layer owns rendering.

func narrateResults(results []AnalyzerResult) string {
	if len(results) == 0 {
		return "No analysis was run."
	}

	var parts []string
	for _, r := range results {
		if !r.Success {
			parts = append(parts, fmt.Sprintf("The %s analysis could not run: %s.", strings.ReplaceAll(r.Kind, "_", " "), r.Error))
			continue
		}
		parts = append(parts, r.Summary)
	}
	return strings.Join(parts, " ")
}

func summarizeOutliers(r *analysis.OutlierResult) string {
	if r.OutlierCount == 0 {
		return fmt.Sprintf("No outliers detected across %d points (risk level: %s).", len(r.Points), r.RiskLevel)
	}

	var extremes []string
	for _, pt := range r.Points {
		if pt.Severity == "extreme" {
			extremes = append(extremes, fmt.Sprintf("%s (%.2f)", pt.Label, pt.Value))
		}
		if len(extremes) == 3 {
			break
		}
	}

	s := fmt.Sprintf("Found %d outliers out of %d points (%d above, %d below); risk level is %s.",
		r.OutlierCount, len(r.Points), r.UpperCount, r.LowerCount, r.RiskLevel)
	if len(extremes) > 0 {
		s += " Most extreme: " + strings.Join(extremes, ", ") + "."
	}
	return s
}

func summarizeBudget(r *analysis.BudgetResult) string {
	return fmt.Sprintf("Across %d periods, %d were favorable, %d unfavorable, and %d on-target; actuals ran %.1f%% against budget overall (performance score %.0f/100).",
		len(r.Periods), r.FavorableCount, r.UnfavorableCount, r.OnTargetCount, r.TotalPctVariance, r.PerformanceScore)
}

func summarizePeriod(r *analysis.PeriodResult) string {
	s := fmt.Sprintf("%s comparison over %d periods: %d increases, %d decreases, %d stable; overall trend is %s.",
		capitalize(r.PeriodType), len(r.Changes)+1, r.IncreaseCount, r.DecreaseCount, r.StableCount, r.OverallTrend)
	if r.SkippedZero > 0 {
		s += fmt.Sprintf(" %d comparisons were skipped because the prior value was zero.", r.SkippedZero)
	}
	return s
}

func summarizeTrend(r *analysis.TrendResult) string {
	return fmt.Sprintf("The %d-period %s moving average shows an %s trend (score %.0f/100) with volatility of %.1f%%; momentum is %s.",
		r.WindowSize, r.Mode, r.OverallDirection, r.TrendScore, r.Volatility, r.Momentum)
}

func summarizeContribution(r *analysis.ContributionResult) string {
	if len(r.Shares) == 0 {
		return "No categories found to break down."
	}

	top := r.Shares[0]
	s := fmt.Sprintf("%s leads with %.1f%% of the total (%.2f across %d rows); %d categories reported.",
		top.Category, top.SharePct, top.Value, top.RowCount, len(r.Shares))

	for _, share := range r.Shares {
		if share.Category == analysis.OthersBucket {
			s += fmt.Sprintf(" Smaller categories were grouped into Others (%.1f%%).", share.SharePct)
			break
		}
	}
	return s
}

func narrateProfiles(profiles []profile.ColumnProfile, rows int) string {
	byType := map[profile.ContentType][]string{}
	for _, p := range profiles {
		byType[p.ContentType] = append(byType[p.ContentType], p.Name)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("The dataset has %d rows and %d columns.", rows, len(profiles)))
	if cols := byType[profile.Numeric]; len(cols) > 0 {
		parts = append(parts, "Numeric: "+strings.Join(cols, ", ")+".")
	}
	if cols := byType[profile.Date]; len(cols) > 0 {
		parts = append(parts, "Dates/periods: "+strings.Join(cols, ", ")+".")
	}
	if cols := byType[profile.Categorical]; len(cols) > 0 {
		parts = append(parts, "Categories: "+strings.Join(cols, ", ")+".")
	}
	parts = append(parts, "You can ask about outliers, budget variance, trends, or category contribution.")
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
