package analysis

import (
	"fmt"
	"math"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

type OutlierMethod string

const (
	MethodIQR    OutlierMethod = "iqr"
	MethodZScore OutlierMethod = "zscore"
	MethodBoth   OutlierMethod = "both"
)

// OutlierTarget picks the series being tested: raw actuals, raw budgets,
// or the per-row variance (actual - budget).
type OutlierTarget string

const (
	TargetActual   OutlierTarget = "actual"
	TargetBudget   OutlierTarget = "budget"
	TargetVariance OutlierTarget = "variance"
)

type OutlierParams struct {
	Method        OutlierMethod `json:"method"`
	Target        OutlierTarget `json:"target"`
	ZThreshold    float64       `json:"zThreshold"`
	IQRMultiplier float64       `json:"iqrMultiplier"`
}

func DefaultOutlierParams() OutlierParams {
	return OutlierParams{
		Method:        MethodBoth,
		Target:        TargetActual,
		ZThreshold:    2.0,
		IQRMultiplier: 1.5,
	}
}

type OutlierPoint struct {
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	ZScore     float64 `json:"zScore"`
	Flagged    bool    `json:"flagged"`
	ByIQR      bool    `json:"byIqr"`
	ByZScore   bool    `json:"byZScore"`
	Direction  string  `json:"direction,omitempty"` // "upper" or "lower"
	Severity   string  `json:"severity,omitempty"`  // "extreme", "moderate", "mild"
}

type OutlierResult struct {
	Method       OutlierMethod  `json:"method"`
	Target       OutlierTarget  `json:"target"`
	Points       []OutlierPoint `json:"points"`
	OutlierCount int            `json:"outlierCount"`
	UpperCount   int            `json:"upperCount"`
	LowerCount   int            `json:"lowerCount"`
	ExtremeCount int            `json:"extremeCount"`
	Mean         float64        `json:"mean"`
	StdDev       float64        `json:"stdDev"`
	Q1           float64        `json:"q1"`
	Q3           float64        `json:"q3"`
	LowerBound   float64        `json:"lowerBound"`
	UpperBound   float64        `json:"upperBound"`
	RiskLevel    string         `json:"riskLevel"` // low, medium, high, critical
}

const minOutlierPoints = 4

// DetectOutliers flags anomalous points in the target series. The "both"
// method flags a point when either detector fires, so its flag set is a
// superset of each method alone.
func DetectOutliers(d *dataset.Dataset, b Bindings, p OutlierParams) (*OutlierResult, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: provide a dataset with at least %d numeric rows", ErrEmptyDataset, minOutlierPoints)
	}

	valueCol := b.Column(profile.RoleActual)
	if valueCol == "" {
		valueCol = b.Column(profile.RoleValue)
	}
	if valueCol == "" {
		return nil, fmt.Errorf("%w: bind a numeric value column to detect outliers", ErrMissingBinding)
	}

	budgetCol := b.Column(profile.RoleBudget)
	if (p.Target == TargetBudget || p.Target == TargetVariance) && budgetCol == "" {
		return nil, fmt.Errorf("%w: target %q needs a budget column; bind one or switch the target to actuals", ErrMissingBinding, p.Target)
	}

	if p.ZThreshold <= 0 {
		p.ZThreshold = 2.0
	}
	if p.IQRMultiplier <= 0 {
		p.IQRMultiplier = 1.5
	}
	if p.Method == "" {
		p.Method = MethodBoth
	}
	if p.Target == "" {
		p.Target = TargetActual
	}

	secondCol := ""
	if p.Target != TargetActual {
		secondCol = budgetCol
	}
	records := collectRecords(d, b.Column(profile.RoleDate), valueCol, secondCol)

	series := make([]float64, 0, len(records))
	labels := make([]string, 0, len(records))
	for _, r := range records {
		var v float64
		switch p.Target {
		case TargetBudget:
			v = r.secondary
		case TargetVariance:
			v = r.value - r.secondary
		default:
			v = r.value
		}
		series = append(series, v)
		labels = append(labels, r.label)
	}

	if len(series) < minOutlierPoints {
		return nil, fmt.Errorf("%w: outlier detection needs at least %d valid numeric points, got %d; supply more rows or check the %q column for non-numeric values",
			ErrInsufficientData, minOutlierPoints, len(series), valueCol)
	}

	m := mean(series)
	sd := stddev(series)
	q1, q3 := quartiles(series)
	iqr := q3 - q1
	lowerBound := q1 - p.IQRMultiplier*iqr
	upperBound := q3 + p.IQRMultiplier*iqr

	result := &OutlierResult{
		Method:     p.Method,
		Target:     p.Target,
		Mean:       m,
		StdDev:     sd,
		Q1:         q1,
		Q3:         q3,
		LowerBound: lowerBound,
		UpperBound: upperBound,
	}

	for i, v := range series {
		pt := OutlierPoint{Label: labels[i], Value: v}

		if sd > 0 {
			pt.ZScore = (v - m) / sd
		}

		byIQR := v < lowerBound || v > upperBound
		byZ := sd > 0 && math.Abs(pt.ZScore) > p.ZThreshold

		switch p.Method {
		case MethodIQR:
			pt.ByIQR = byIQR
			pt.Flagged = byIQR
		case MethodZScore:
			pt.ByZScore = byZ
			pt.Flagged = byZ
		default: // both
			pt.ByIQR = byIQR
			pt.ByZScore = byZ
			pt.Flagged = byIQR || byZ
		}

		if pt.Flagged {
			result.OutlierCount++
			if v > m {
				pt.Direction = "upper"
				result.UpperCount++
			} else {
				pt.Direction = "lower"
				result.LowerCount++
			}
			pt.Severity = severity(pt, p, lowerBound, upperBound, iqr)
			if pt.Severity == "extreme" {
				result.ExtremeCount++
			}
		}

		result.Points = append(result.Points, pt)
	}

	result.RiskLevel = riskLevel(result.OutlierCount, len(series))
	return result, nil
}

// severity tags a flagged point: extreme when both detectors fire, moderate
// when a single detector fires well past its threshold, mild otherwise.
func severity(pt OutlierPoint, p OutlierParams, lowerBound, upperBound, iqr float64) string {
	if pt.ByIQR && pt.ByZScore {
		return "extreme"
	}
	if pt.ByZScore && math.Abs(pt.ZScore) > p.ZThreshold*1.5 {
		return "moderate"
	}
	if pt.ByIQR && iqr > 0 {
		overshoot := 0.0
		if pt.Value > upperBound {
			overshoot = pt.Value - upperBound
		} else if pt.Value < lowerBound {
			overshoot = lowerBound - pt.Value
		}
		if overshoot > 0.5*p.IQRMultiplier*iqr {
			return "moderate"
		}
	}
	return "mild"
}

func riskLevel(outliers, total int) string {
	ratio := float64(outliers) / float64(total)
	switch {
	case ratio >= 0.2:
		return "critical"
	case ratio >= 0.1:
		return "high"
	case ratio >= 0.05:
		return "medium"
	default:
		return "low"
	}
}
