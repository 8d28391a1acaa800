package profile

import "strings"

// rolePattern is one entry of the ordered scoring table: a keyword, the role
// it argues for, the base score a substring hit earns, and the content type
// the role expects. Declaration order is the tie-breaker everywhere, so the
// table is data the tests can pin down, not scattered conditionals.
type rolePattern struct {
	keyword string
	role    Role
	base    float64
	expect  ContentType
}

var rolePatterns = []rolePattern{
	// Budget / plan figures.
	{"budget", RoleBudget, 45, Numeric},
	{"planned", RoleBudget, 40, Numeric},
	{"plan", RoleBudget, 30, Numeric},
	{"target", RoleBudget, 35, Numeric},
	{"quota", RoleBudget, 30, Numeric},

	// Actual figures.
	{"actual", RoleActual, 45, Numeric},
	{"achieved", RoleActual, 35, Numeric},
	{"realized", RoleActual, 30, Numeric},

	// Forecasts.
	{"forecast", RoleForecast, 45, Numeric},
	{"projection", RoleForecast, 40, Numeric},
	{"projected", RoleForecast, 35, Numeric},
	{"estimate", RoleForecast, 30, Numeric},

	// Dates and periods.
	{"date", RoleDate, 45, Date},
	{"period", RoleDate, 40, Date},
	{"month", RoleDate, 35, Date},
	{"week", RoleDate, 35, Date},
	{"quarter", RoleDate, 35, Date},
	{"year", RoleDate, 30, Date},
	{"day", RoleDate, 25, Date},
	{"time", RoleDate, 20, Date},

	// Primary measure.
	{"amount", RoleValue, 40, Numeric},
	{"value", RoleValue, 40, Numeric},
	{"revenue", RoleValue, 40, Numeric},
	{"sales", RoleValue, 40, Numeric},
	{"actual", RoleValue, 30, Numeric},
	{"total", RoleValue, 30, Numeric},
	{"cost", RoleValue, 30, Numeric},
	{"spend", RoleValue, 30, Numeric},
	{"price", RoleValue, 25, Numeric},
	{"quantity", RoleValue, 25, Numeric},
	{"count", RoleValue, 20, Numeric},

	// Comparison measure.
	{"previous", RoleSecondaryValue, 40, Numeric},
	{"prior", RoleSecondaryValue, 40, Numeric},
	{"baseline", RoleSecondaryValue, 35, Numeric},
	{"last", RoleSecondaryValue, 25, Numeric},

	// Grouping fields.
	{"category", RolePrimaryCategory, 45, Categorical},
	{"product", RolePrimaryCategory, 40, Categorical},
	{"segment", RolePrimaryCategory, 40, Categorical},
	{"region", RolePrimaryCategory, 40, Categorical},
	{"department", RolePrimaryCategory, 40, Categorical},
	{"group", RolePrimaryCategory, 30, Categorical},
	{"type", RolePrimaryCategory, 25, Categorical},
	{"name", RolePrimaryCategory, 20, Categorical},

	{"subcategory", RoleSecondaryCategory, 45, Categorical},
	{"sub_category", RoleSecondaryCategory, 45, Categorical},
	{"subgroup", RoleSecondaryCategory, 40, Categorical},
	{"subtype", RoleSecondaryCategory, 35, Categorical},
	{"detail", RoleSecondaryCategory, 25, Categorical},
}

var dateKeywords = []string{"date", "period", "month", "week", "quarter", "year", "day", "time"}

func hasDateKeyword(lowerName string) bool {
	for _, kw := range dateKeywords {
		if strings.Contains(lowerName, kw) {
			return true
		}
	}
	return false
}

// expectedType is what a role needs its column to contain. Unknown roles
// default to numeric, the common case for measures.
func expectedType(role Role) ContentType {
	switch role {
	case RoleDate:
		return Date
	case RolePrimaryCategory, RoleSecondaryCategory:
		return Categorical
	default:
		return Numeric
	}
}

const (
	multiKeywordBonus   = 10
	boundaryMatchBonus  = 15
	typeAgreementBonus  = 15
	typeMismatchPenalty = 20
	lowCardinalityBonus = 10
	highCardinalityCut  = 15
)

// scoreRoles runs the pattern table against one column. Scores are a
// weighted sum: substring hits, a bonus for multiple distinct keywords
// arguing for the same role, a bonus for exact or token-boundary matches,
// content-type agreement, and a cardinality adjustment for category roles.
// Everything clamps to [0,100] and the computation is pure, so re-profiling
// an unchanged dataset yields identical scores.
func scoreRoles(p *ColumnProfile) {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	tokens := tokenizeName(name)

	hits := make(map[Role]int)
	for _, pat := range rolePatterns {
		if !strings.Contains(name, pat.keyword) {
			continue
		}
		hits[pat.role]++

		score := p.RoleScores[pat.role] + pat.base
		if name == pat.keyword || containsToken(tokens, pat.keyword) {
			score += boundaryMatchBonus
		}
		p.RoleScores[pat.role] = score
	}

	for role, n := range hits {
		score := p.RoleScores[role]
		if n >= 2 {
			score += multiKeywordBonus
		}

		if expectedType(role) == p.ContentType {
			score += typeAgreementBonus
		} else {
			score -= typeMismatchPenalty
		}

		if role == RolePrimaryCategory || role == RoleSecondaryCategory {
			if p.UniquenessRatio < 0.5 {
				score += lowCardinalityBonus
			} else if p.UniquenessRatio > 0.8 {
				score -= highCardinalityCut
			}
		}

		p.RoleScores[role] = clamp(score, 0, 100)
	}
}

func tokenizeName(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/'
	})
}

func containsToken(tokens []string, keyword string) bool {
	for _, t := range tokens {
		if t == keyword {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
