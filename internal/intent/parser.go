package intent

import (
	"fmt"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/data-agent/backend/internal/analysis"
	"github.com/data-agent/backend/internal/profile"
)

type Action string

const (
	ActionAnalyze   Action = "analyze"
	ActionClarify   Action = "clarify"
	ActionSummarize Action = "summarize"
	ActionExplore   Action = "explore"
)

// Intent is the parser's terminal outcome: either dispatchable (bindings
// resolved, confidence above the gate) or a clarification request. The gate
// is a correctness guarantee, not a UX nicety — no analyzer ever runs
// against an under-confident or incomplete binding.
type Intent struct {
	PrimaryAction       Action                      `json:"primaryAction"`
	AnalysisType        AnalysisType                `json:"analysisType"`
	Variant             Variant                     `json:"variant,omitempty"`
	Confidence          float64                     `json:"confidence"`
	RequiredRoles       []profile.Role              `json:"requiredRoles"`
	Bindings            analysis.Bindings           `json:"bindings"`
	NeedsClarification  bool                        `json:"needsClarification"`
	ClarificationReason string                      `json:"clarificationReason,omitempty"`
	RoleCandidates      map[profile.Role][]string   `json:"roleCandidates,omitempty"`
}

type Parser struct {
	gate float64
}

// NewParser builds a parser with the given confidence gate; zero or
// negative falls back to the default of 0.72.
func NewParser(gate float64) *Parser {
	if gate <= 0 {
		gate = 0.72
	}
	return &Parser{gate: gate}
}

// Normalize produces the canonical form of a query used for both pattern
// matching and cache keys.
func Normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// roleScoreFloor is the minimum profiler score a column must reach before a
// role counts as confidently met.
const roleScoreFloor = 20.0

// Confidence deductions applied during binding validation.
const (
	ambiguousBindingPenalty = 0.15
	fallbackBindingPenalty  = 0.10
	missingBindingPenalty   = 0.20
	genericQueryPenalty     = 0.10
)

// Parse maps free text plus the profiler's column metadata onto a typed
// intent. It never returns an error: ambiguity is expressed as a
// clarification outcome, which is a first-class return value.
func (p *Parser) Parse(query string, profiles []profile.ColumnProfile) Intent {
	norm := Normalize(query)

	if phrase := matchAny(norm, explorePhrases); phrase != "" {
		return Intent{
			PrimaryAction: ActionExplore,
			AnalysisType:  TypeGeneral,
			Confidence:    0.9,
			Bindings:      analysis.Bindings{},
		}
	}

	analysisType := TypeGeneral
	variant := Variant("")
	confidence := 0.5
	action := ActionAnalyze

	if phrase := matchAny(norm, summaryPhrases); phrase != "" {
		action = ActionSummarize
		confidence = 0.85
	} else {
		matched := false
		for _, pat := range intentPatterns {
			if strings.Contains(norm, pat.phrase) {
				analysisType = pat.analysisType
				variant = pat.variant
				confidence = pat.confidence
				matched = true
				break
			}
		}
		if !matched {
			return p.clarify(Intent{
				PrimaryAction: ActionClarify,
				AnalysisType:  TypeGeneral,
				Confidence:    confidence,
				Bindings:      analysis.Bindings{},
			}, "the question did not match a supported analysis; try asking about outliers, budget variance, trends, or category contribution")
		}
	}

	intent := Intent{
		PrimaryAction:  action,
		AnalysisType:   analysisType,
		Variant:        variant,
		Confidence:     confidence,
		RequiredRoles:  requiredRoles(analysisType, variant),
		Bindings:       analysis.Bindings{},
		RoleCandidates: make(map[profile.Role][]string),
	}

	var reasons []string
	missing := false
	for _, role := range intent.RequiredRoles {
		column, candidates, quality := resolveRole(role, profiles)
		if column != "" {
			intent.Bindings[role] = column
		}

		switch quality {
		case bindingAmbiguous:
			intent.Confidence -= ambiguousBindingPenalty
			intent.RoleCandidates[role] = candidates
			reasons = append(reasons, fmt.Sprintf("several columns could serve as the %s: %s; pick one", role, strings.Join(candidates, ", ")))
		case bindingFallback:
			intent.Confidence -= fallbackBindingPenalty
			intent.RoleCandidates[role] = candidates
			reasons = append(reasons, fmt.Sprintf("no column clearly matches the %s role; assuming %q", role, column))
		case bindingMissing:
			intent.Confidence -= missingBindingPenalty
			missing = true
			reasons = append(reasons, fmt.Sprintf("no %s column found; the dataset needs one to run this analysis", role))
		}
	}

	// Auxiliary roles that improve a dispatch but never block it.
	for _, role := range []profile.Role{profile.RoleDate, profile.RolePrimaryCategory, profile.RoleSecondaryCategory, profile.RoleBudget, profile.RoleActual} {
		if _, bound := intent.Bindings[role]; bound {
			continue
		}
		if column, _, quality := resolveRole(role, profiles); quality == bindingStrong {
			intent.Bindings[role] = column
		}
	}

	if isGenericQuery(norm) && intent.Confidence <= 0.8 {
		intent.Confidence -= genericQueryPenalty
	}
	if intent.Confidence < 0 {
		intent.Confidence = 0
	}

	if missing || intent.Confidence < p.gate {
		return p.clarify(intent, strings.Join(reasons, "; "))
	}
	return intent
}

func (p *Parser) clarify(intent Intent, reason string) Intent {
	if reason == "" {
		reason = "the question was too ambiguous to run an analysis; add what to analyze and which column to use"
	}
	intent.PrimaryAction = ActionClarify
	intent.NeedsClarification = true
	intent.ClarificationReason = reason
	return intent
}

type bindingQuality int

const (
	bindingStrong bindingQuality = iota
	bindingAmbiguous
	bindingFallback
	bindingMissing
)

// resolveRole picks a column for a role from the profiler's scores. A role
// is ambiguous when a second column scores within 10 points of the best,
// and degraded to a content-type fallback when nothing clears the floor.
func resolveRole(role profile.Role, profiles []profile.ColumnProfile) (string, []string, bindingQuality) {
	best, bestScore := profile.BestColumn(profiles, role)

	if bestScore >= roleScoreFloor {
		var candidates []string
		for _, pr := range profiles {
			if pr.RoleScores[role] >= roleScoreFloor && pr.RoleScores[role] >= bestScore-10 {
				candidates = append(candidates, pr.Name)
			}
		}
		if len(candidates) > 1 {
			return best, candidates, bindingAmbiguous
		}
		return best, candidates, bindingStrong
	}

	expected := roleContentType(role)
	if fallback := profile.FirstOfType(profiles, expected); fallback != "" {
		return fallback, profile.ColumnsOfType(profiles, expected), bindingFallback
	}
	return "", nil, bindingMissing
}

func roleContentType(role profile.Role) profile.ContentType {
	switch role {
	case profile.RoleDate:
		return profile.Date
	case profile.RolePrimaryCategory, profile.RoleSecondaryCategory:
		return profile.Categorical
	default:
		return profile.Numeric
	}
}

// isGenericQuery reports whether the query carries no analytical signal
// beyond filler: very short, or made entirely of generic words. Tokenizes
// with prose and falls back to whitespace splitting if tagging fails.
func isGenericQuery(norm string) bool {
	if len(norm) < 10 {
		return true
	}

	var words []string
	if doc, err := prose.NewDocument(norm, prose.WithExtraction(false), prose.WithSegmentation(false)); err == nil {
		for _, tok := range doc.Tokens() {
			words = append(words, strings.ToLower(tok.Text))
		}
	} else {
		words = strings.Fields(norm)
	}

	for _, w := range words {
		if !genericWords[strings.Trim(w, "?.!,")] {
			return false
		}
	}
	return true
}

func matchAny(norm string, phrases []string) string {
	for _, phrase := range phrases {
		if strings.Contains(norm, phrase) {
			return phrase
		}
	}
	return ""
}
