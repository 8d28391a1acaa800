package intent

import "github.com/data-agent/backend/internal/profile"

// AnalysisType is the closed taxonomy of analyses the agent can run. There
// is no general query language; free text maps onto one of these or the
// parser asks for clarification.
type AnalysisType string

const (
	TypeOutlier      AnalysisType = "outlier"
	TypeVariance     AnalysisType = "variance"
	TypeTrend        AnalysisType = "trend"
	TypeContribution AnalysisType = "contribution"
	TypeGeneral      AnalysisType = "general"
)

// Variant splits the variance type between budget-vs-actual and
// period-over-period comparisons, which need different bindings.
type Variant string

const (
	VariantBudget Variant = "budget"
	VariantPeriod Variant = "period"
)

// intentPattern is one row of the ordered matching table. The first pattern
// whose phrase appears in the normalized query wins and sets the base
// confidence, so ordering encodes priority and ties are impossible.
type intentPattern struct {
	phrase       string
	analysisType AnalysisType
	variant      Variant
	confidence   float64
}

var intentPatterns = []intentPattern{
	// Outliers.
	{"outlier", TypeOutlier, "", 0.9},
	{"anomal", TypeOutlier, "", 0.9},
	{"unusual", TypeOutlier, "", 0.85},
	{"abnormal", TypeOutlier, "", 0.85},
	{"spike", TypeOutlier, "", 0.8},
	{"stand out", TypeOutlier, "", 0.8},

	// Budget variance.
	{"budget variance", TypeVariance, VariantBudget, 0.9},
	{"vs budget", TypeVariance, VariantBudget, 0.9},
	{"versus budget", TypeVariance, VariantBudget, 0.9},
	{"against budget", TypeVariance, VariantBudget, 0.9},
	{"over budget", TypeVariance, VariantBudget, 0.85},
	{"under budget", TypeVariance, VariantBudget, 0.85},
	{"vs plan", TypeVariance, VariantBudget, 0.85},
	{"against plan", TypeVariance, VariantBudget, 0.85},
	{"vs target", TypeVariance, VariantBudget, 0.85},
	{"budget", TypeVariance, VariantBudget, 0.8},

	// Period variance.
	{"week over week", TypeVariance, VariantPeriod, 0.9},
	{"week-over-week", TypeVariance, VariantPeriod, 0.9},
	{"month over month", TypeVariance, VariantPeriod, 0.9},
	{"month-over-month", TypeVariance, VariantPeriod, 0.9},
	{"quarter over quarter", TypeVariance, VariantPeriod, 0.9},
	{"period over period", TypeVariance, VariantPeriod, 0.85},
	{"compared to last", TypeVariance, VariantPeriod, 0.8},
	{"change over time", TypeVariance, VariantPeriod, 0.8},
	{"variance", TypeVariance, VariantBudget, 0.8},

	// Trends.
	{"moving average", TypeTrend, "", 0.9},
	{"trend", TypeTrend, "", 0.85},
	{"trajectory", TypeTrend, "", 0.85},
	{"momentum", TypeTrend, "", 0.8},
	{"over time", TypeTrend, "", 0.8},

	// Contribution.
	{"contribution", TypeContribution, "", 0.9},
	{"breakdown", TypeContribution, "", 0.9},
	{"break down", TypeContribution, "", 0.9},
	{"top perform", TypeContribution, "", 0.85},
	{"bottom perform", TypeContribution, "", 0.85},
	{"best perform", TypeContribution, "", 0.85},
	{"worst perform", TypeContribution, "", 0.85},
	{"by category", TypeContribution, "", 0.85},
	{"by product", TypeContribution, "", 0.85},
	{"by region", TypeContribution, "", 0.85},
	{"share of", TypeContribution, "", 0.8},
	{"percentage of", TypeContribution, "", 0.8},
	{"makes up", TypeContribution, "", 0.8},
}

// summaryPhrases trigger a fan-out dispatch across every applicable
// analyzer rather than a single analysis.
var summaryPhrases = []string{"summary", "summarize", "summarise", "overview", "analyze everything", "full analysis"}

// explorePhrases ask about the dataset itself rather than its contents.
var explorePhrases = []string{"what columns", "which columns", "what fields", "what data", "what can i ask", "what can you"}

// requiredRoles is the static role table per analysis type. Variance splits
// by variant: budget comparison needs both figures, period comparison needs
// a date axis.
func requiredRoles(t AnalysisType, v Variant) []profile.Role {
	switch t {
	case TypeOutlier:
		return []profile.Role{profile.RoleValue}
	case TypeVariance:
		if v == VariantPeriod {
			return []profile.Role{profile.RoleDate, profile.RoleValue}
		}
		return []profile.Role{profile.RoleActual, profile.RoleBudget}
	case TypeTrend:
		return []profile.Role{profile.RoleDate, profile.RoleValue}
	case TypeContribution:
		return []profile.Role{profile.RoleValue, profile.RolePrimaryCategory}
	default:
		return []profile.Role{profile.RoleValue}
	}
}

// genericWords carry no analytical signal on their own; a query made
// entirely of these is penalized when confidence is already borderline.
var genericWords = map[string]bool{
	"show": true, "tell": true, "give": true, "display": true, "list": true,
	"what": true, "whats": true, "how": true, "is": true, "are": true,
	"me": true, "my": true, "the": true, "a": true, "an": true, "of": true,
	"in": true, "on": true, "for": true, "to": true, "about": true,
	"please": true, "can": true, "you": true, "data": true, "it": true,
	"this": true, "that": true, "do": true, "does": true,
}
