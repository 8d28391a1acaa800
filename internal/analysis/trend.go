package analysis

import (
	"fmt"
	"math"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

type AveragingMode string

const (
	SimpleAverage      AveragingMode = "simple"
	ExponentialAverage AveragingMode = "exponential"
)

type TrendParams struct {
	WindowSize int           `json:"windowSize"` // 2-20
	Mode       AveragingMode `json:"mode"`
}

func DefaultTrendParams() TrendParams {
	return TrendParams{WindowSize: 3, Mode: SimpleAverage}
}

type TrendPoint struct {
	Period       string  `json:"period"`
	Value        float64 `json:"value"`
	MovingAvg    float64 `json:"movingAvg"`
	HasAverage   bool    `json:"hasAverage"`
	DeviationPct float64 `json:"deviationPct"`
	Direction    string  `json:"direction,omitempty"` // upward, downward, stable
	Strength     string  `json:"strength,omitempty"`  // strong, moderate, mild
}

type TrendResult struct {
	WindowSize       int           `json:"windowSize"`
	Mode             AveragingMode `json:"mode"`
	Points           []TrendPoint  `json:"points"`
	TrendScore       float64       `json:"trendScore"` // 0-100
	Volatility       float64       `json:"volatility"` // stddev of period pct changes
	OverallDirection string        `json:"overallDirection"`
	Momentum         string        `json:"momentum"` // accelerating, decelerating, steady
}

const (
	maxTrendWindow       = 20
	stableDeviationPct   = 1.0
	moderateDeviationPct = 5.0
	strongDeviationPct   = 10.0
)

// AnalyzeTrend computes a moving average over a chronological series and
// classifies each point by its deviation from the average. The moving
// average only reports once windowSize points have accumulated.
func AnalyzeTrend(d *dataset.Dataset, b Bindings, p TrendParams) (*TrendResult, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: provide a series of dated values", ErrEmptyDataset)
	}

	valueCol := b.Column(profile.RoleValue)
	if valueCol == "" {
		valueCol = b.Column(profile.RoleActual)
	}
	if valueCol == "" {
		return nil, fmt.Errorf("%w: trend analysis needs a numeric value column", ErrMissingBinding)
	}

	if p.WindowSize == 0 {
		p.WindowSize = 3
	}
	if p.WindowSize < 2 || p.WindowSize > maxTrendWindow {
		return nil, fmt.Errorf("%w: moving-average window must be between 2 and %d, got %d", ErrInvalidParameter, maxTrendWindow, p.WindowSize)
	}
	if p.Mode == "" {
		p.Mode = SimpleAverage
	}

	records := collectRecords(d, b.Column(profile.RoleDate), valueCol, "")
	if len(records) < p.WindowSize {
		return nil, fmt.Errorf("%w: trend analysis with window %d needs at least %d data points, got %d; supply more rows or shrink the window",
			ErrInsufficientData, p.WindowSize, p.WindowSize, len(records))
	}
	sortChronologically(records)

	result := &TrendResult{WindowSize: p.WindowSize, Mode: p.Mode}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.value
	}
	averages := movingAverages(values, p.WindowSize, p.Mode)

	upward, downward := 0, 0
	var deviations []float64
	for i, r := range records {
		pt := TrendPoint{Period: r.label, Value: r.value}

		if i >= p.WindowSize-1 {
			pt.MovingAvg = averages[i]
			pt.HasAverage = true

			if pt.MovingAvg != 0 {
				pt.DeviationPct = round2((pt.Value - pt.MovingAvg) / pt.MovingAvg * 100)
			}
			deviations = append(deviations, pt.DeviationPct)

			abs := math.Abs(pt.DeviationPct)
			switch {
			case abs < stableDeviationPct:
				pt.Direction = "stable"
			case pt.DeviationPct > 0:
				pt.Direction = "upward"
				upward++
			default:
				pt.Direction = "downward"
				downward++
			}

			switch {
			case abs >= strongDeviationPct:
				pt.Strength = "strong"
			case abs >= moderateDeviationPct:
				pt.Strength = "moderate"
			default:
				pt.Strength = "mild"
			}
		}

		result.Points = append(result.Points, pt)
	}

	result.OverallDirection = dominantDirection(upward, downward, len(deviations))
	result.TrendScore = trendScore(upward, downward, deviations)
	result.Volatility = volatility(values)
	result.Momentum = momentum(deviations)

	return result, nil
}

func movingAverages(values []float64, window int, mode AveragingMode) []float64 {
	averages := make([]float64, len(values))

	if mode == ExponentialAverage {
		alpha := 2.0 / (float64(window) + 1)
		ema := values[0]
		for i := 1; i < len(values); i++ {
			ema = alpha*values[i] + (1-alpha)*ema
			averages[i] = ema
		}
		return averages
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			averages[i] = sum / float64(window)
		}
	}
	return averages
}

func dominantDirection(upward, downward, total int) string {
	switch {
	case total == 0:
		return "stable"
	case upward > downward:
		return "upward"
	case downward > upward:
		return "downward"
	default:
		return "stable"
	}
}

// trendScore blends directional consistency (how often points agree with
// the dominant direction) with deviation magnitude.
func trendScore(upward, downward int, deviations []float64) float64 {
	if len(deviations) == 0 {
		return 0
	}

	dominant := upward
	if downward > dominant {
		dominant = downward
	}
	consistency := float64(dominant) / float64(len(deviations))

	sumAbs := 0.0
	for _, d := range deviations {
		sumAbs += math.Abs(d)
	}
	magnitude := math.Min(30, sumAbs/float64(len(deviations))*3)

	return round2(consistency*70 + magnitude)
}

// volatility is the dispersion of period-over-period percentage changes.
func volatility(values []float64) float64 {
	var changes []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		changes = append(changes, (values[i]-values[i-1])/values[i-1]*100)
	}
	return round2(stddev(changes))
}

// momentum compares the most recent deviation magnitude to the trailing
// average of the earlier ones.
func momentum(deviations []float64) string {
	if len(deviations) < 2 {
		return "steady"
	}

	recent := math.Abs(deviations[len(deviations)-1])
	trailing := 0.0
	for _, d := range deviations[:len(deviations)-1] {
		trailing += math.Abs(d)
	}
	trailing /= float64(len(deviations) - 1)

	switch {
	case trailing == 0 && recent == 0:
		return "steady"
	case recent > trailing*1.1:
		return "accelerating"
	case recent < trailing*0.9:
		return "decelerating"
	default:
		return "steady"
	}
}
