package profile

import (
	"strings"

	"github.com/data-agent/backend/internal/dataset"
)

// ContentType is the inferred data type of a column.
type ContentType string

const (
	Numeric     ContentType = "numeric"
	Date        ContentType = "date"
	Categorical ContentType = "categorical"
)

// Role is the analytical purpose a column can serve.
type Role string

const (
	RoleValue             Role = "value"
	RoleSecondaryValue    Role = "secondaryValue"
	RoleDate              Role = "date"
	RolePrimaryCategory   Role = "primaryCategory"
	RoleSecondaryCategory Role = "secondaryCategory"
	RoleBudget            Role = "budget"
	RoleActual            Role = "actual"
	RoleForecast          Role = "forecast"
)

// ColumnProfile is the profiler's verdict for one column: a single content
// type plus independent 0-100 confidence scores per role. Role scores are
// not mutually exclusive; an "Actuals" column scores for both actual and
// the generic value role.
type ColumnProfile struct {
	Name            string             `json:"name"`
	ContentType     ContentType        `json:"contentType"`
	RoleScores      map[Role]float64   `json:"roleScores"`
	NumericRatio    float64            `json:"numericRatio"`
	DateRatio       float64            `json:"dateRatio"`
	UniquenessRatio float64            `json:"uniquenessRatio"`
}

// profileSampleSize caps how many rows per column feed type inference.
const profileSampleSize = 50

// Profile inspects every column of a dataset and never fails: a column the
// profiler cannot place simply scores zero for every role, and callers fall
// back to the first column of the content type they need.
func Profile(d *dataset.Dataset) []ColumnProfile {
	profiles := make([]ColumnProfile, 0, len(d.Columns))
	for _, col := range d.Columns {
		profiles = append(profiles, profileColumn(d, col))
	}
	return profiles
}

func profileColumn(d *dataset.Dataset, col string) ColumnProfile {
	limit := d.Len()
	if limit > profileSampleSize {
		limit = profileSampleSize
	}

	sampled := 0
	numericCount := 0
	dateCount := 0
	distinct := make(map[string]bool)

	for i := 0; i < limit; i++ {
		v := d.Rows[i][col]
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		sampled++
		if _, ok := dataset.ToFloat(v); ok {
			numericCount++
		}
		if _, ok := dataset.ToTime(v); ok {
			dateCount++
		}
		distinct[dataset.ToString(v)] = true
	}

	p := ColumnProfile{
		Name:        col,
		ContentType: Categorical,
		RoleScores:  make(map[Role]float64),
	}
	if sampled > 0 {
		p.NumericRatio = float64(numericCount) / float64(sampled)
		p.DateRatio = float64(dateCount) / float64(sampled)
		p.UniquenessRatio = float64(len(distinct)) / float64(sampled)
	}

	p.ContentType = classifyContent(col, p.NumericRatio, p.DateRatio)
	scoreRoles(&p)
	return p
}

// classifyContent applies the ratio thresholds. A strong date signal beats
// numeric (bare years parse as both); a weaker date signal still wins when
// the column name agrees.
func classifyContent(name string, numericRatio, dateRatio float64) ContentType {
	nameHintsDate := hasDateKeyword(strings.ToLower(name))

	switch {
	case dateRatio >= 0.8 && (dateRatio >= numericRatio || nameHintsDate):
		return Date
	case numericRatio > 0.8:
		if dateRatio >= 0.6 && nameHintsDate {
			return Date
		}
		return Numeric
	case dateRatio >= 0.6:
		return Date
	default:
		return Categorical
	}
}

// BestColumn returns the highest-scoring column for a role along with its
// score. Ties resolve to the earliest column, keeping selection deterministic.
func BestColumn(profiles []ColumnProfile, role Role) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, p := range profiles {
		if s := p.RoleScores[role]; s > bestScore {
			best = p.Name
			bestScore = s
		}
	}
	return best, bestScore
}

// FirstOfType is the fallback when no column scored for a role: the first
// column whose content type matches what the role needs.
func FirstOfType(profiles []ColumnProfile, ct ContentType) string {
	for _, p := range profiles {
		if p.ContentType == ct {
			return p.Name
		}
	}
	return ""
}

// ColumnsOfType lists every column of a content type, in dataset order.
func ColumnsOfType(profiles []ColumnProfile, ct ContentType) []string {
	var cols []string
	for _, p := range profiles {
		if p.ContentType == ct {
			cols = append(cols, p.Name)
		}
	}
	return cols
}
