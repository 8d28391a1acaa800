package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/analysis"
	"github.com/data-agent/backend/internal/cache/memory"
	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/intent"
	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/internal/profile"
	"github.com/data-agent/backend/internal/storage/models"
	"github.com/data-agent/backend/internal/storage/sqlite"
	"github.com/data-agent/backend/pkg/logger"
)

// Params are the orchestrator's tuning knobs, normally sourced from the
// analysis section of the service config.
type Params struct {
	SamplingThreshold int
	TargetSampleSize  int
	CacheCapacity     int
	ConfidenceGate    float64
	Outlier           analysis.OutlierParams
	Budget            analysis.BudgetParams
	Period            analysis.PeriodParams
	Trend             analysis.TrendParams
	Contribution      analysis.ContributionParams
}

func DefaultParams() Params {
	return Params{
		SamplingThreshold: 100000,
		TargetSampleSize:  10000,
		CacheCapacity:     50,
		ConfidenceGate:    0.72,
		Outlier:           analysis.DefaultOutlierParams(),
		Budget:            analysis.DefaultBudgetParams(),
		Period:            analysis.DefaultPeriodParams(),
		Trend:             analysis.DefaultTrendParams(),
		Contribution:      analysis.DefaultContributionParams(),
	}
}

// Engine resolves a free-text question against a dataset: cache check,
// intent parsing, sampling, analyzer dispatch, narration. One query is
// fully resolved before the next; the cache is the only shared state and
// guards itself.
type Engine struct {
	parser  *intent.Parser
	cache   *memory.Cache
	sampler dataset.Sampler
	db      *sqlite.Client
	params  Params
}

// NewEngine wires the orchestrator. db may be nil; history recording is
// best-effort and never fails a query.
func NewEngine(params Params, sampler dataset.Sampler, db *sqlite.Client) *Engine {
	if sampler == nil {
		sampler = dataset.SystematicSampler{}
	}
	return &Engine{
		parser:  intent.NewParser(params.ConfidenceGate),
		cache:   memory.New(params.CacheCapacity),
		sampler: sampler,
		db:      db,
		params:  params,
	}
}

type Request struct {
	Query       string
	DatasetName string
	// Fingerprint identifies the dataset contents; it scopes cache entries so
	// a re-upload or a different dataset never serves stale results.
	Fingerprint string
	Dataset     *dataset.Dataset
	UserID      string
	// Bindings are explicit user column choices that override automatic
	// selection, e.g. after a clarification round.
	Bindings analysis.Bindings
}

// cacheKey scopes a cached result to the dataset contents, the normalized
// query, and any explicit bindings. Without a fingerprint the dataset's
// identity in memory stands in, which still separates distinct uploads.
func cacheKey(req Request) string {
	id := req.Fingerprint
	if id == "" {
		id = fmt.Sprintf("%p", req.Dataset)
	}

	key := id + "|" + intent.Normalize(req.Query)
	if len(req.Bindings) > 0 {
		pairs := make([]string, 0, len(req.Bindings))
		for role, col := range req.Bindings {
			pairs = append(pairs, string(role)+"="+col)
		}
		sort.Strings(pairs)
		key += "|" + strings.Join(pairs, ",")
	}
	return key
}

// AnalyzerResult is one analyzer's outcome within a response. Failures are
// carried as data so a failed sibling never aborts a summary fan-out.
type AnalyzerResult struct {
	Kind         string                         `json:"kind"`
	Success      bool                           `json:"success"`
	Error        string                         `json:"error,omitempty"`
	Summary      string                         `json:"summary,omitempty"`
	Outlier      *analysis.OutlierResult        `json:"outlier,omitempty"`
	Budget       *analysis.BudgetResult         `json:"budget,omitempty"`
	Period       *analysis.PeriodResult         `json:"period,omitempty"`
	Trend        *analysis.TrendResult          `json:"trend,omitempty"`
	Contribution *analysis.ContributionResult   `json:"contribution,omitempty"`
}

type Clarification struct {
	Reason  string                        `json:"reason"`
	Options map[profile.Role][]string     `json:"options,omitempty"`
}

type Response struct {
	ID            string                  `json:"id"`
	Query         string                  `json:"query"`
	Action        intent.Action           `json:"action"`
	AnalysisType  intent.AnalysisType     `json:"analysisType"`
	Confidence    float64                 `json:"confidence"`
	CacheHit      bool                    `json:"cacheHit"`
	TotalRows     int                     `json:"totalRows"`
	SampledRows   int                     `json:"sampledRows,omitempty"` // 0 when no sampling applied
	Results       []AnalyzerResult        `json:"results,omitempty"`
	Clarification *Clarification          `json:"clarification,omitempty"`
	Profiles      []profile.ColumnProfile `json:"profiles,omitempty"` // explore action only
	Narrative     string                  `json:"narrative"`
	LatencyMS     int                     `json:"latencyMs"`
}

// ProcessQuery runs the full pipeline. Input errors (empty dataset, empty
// query) return an error; ambiguity returns a clarification response; an
// analyzer failure returns a failed AnalyzerResult with a remedy message.
func (e *Engine) ProcessQuery(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()
	queryID := uuid.New().String()

	if req.Dataset == nil || req.Dataset.Len() == 0 {
		return nil, fmt.Errorf("%w: upload a dataset before asking questions", analysis.ErrEmptyDataset)
	}
	if intent.Normalize(req.Query) == "" {
		return nil, fmt.Errorf("query text is required: ask about outliers, budget variance, trends, or contribution")
	}

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("query", req.Query),
		zap.String("dataset", req.DatasetName),
		zap.Int("rows", req.Dataset.Len()),
	)

	key := cacheKey(req)
	if cached, ok := e.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		hit := *(cached.(*Response))
		hit.CacheHit = true
		hit.LatencyMS = int(time.Since(startTime).Milliseconds())
		logger.Debug("Query served from cache", zap.String("query_id", queryID))
		return &hit, nil
	}
	metrics.CacheMisses.WithLabelValues("memory").Inc()

	profiles := profile.Profile(req.Dataset)
	parsed := e.parser.Parse(req.Query, profiles)
	parsed = applyOverrides(parsed, req.Bindings)

	resp := &Response{
		ID:           queryID,
		Query:        req.Query,
		Action:       parsed.PrimaryAction,
		AnalysisType: parsed.AnalysisType,
		Confidence:   parsed.Confidence,
		TotalRows:    req.Dataset.Len(),
	}

	switch {
	case parsed.PrimaryAction == intent.ActionExplore:
		resp.Profiles = profiles
		resp.Narrative = narrateProfiles(profiles, req.Dataset.Len())

	case parsed.NeedsClarification:
		resp.Clarification = &Clarification{
			Reason:  parsed.ClarificationReason,
			Options: parsed.RoleCandidates,
		}
		resp.Narrative = "I need a bit more detail before running this: " + parsed.ClarificationReason

	default:
		view := req.Dataset
		if view.Len() > e.params.SamplingThreshold {
			view = e.sampler.Sample(view, e.params.TargetSampleSize)
			resp.SampledRows = view.Len()
			metrics.SamplingApplied.Inc()
			logger.Info("Dataset sampled",
				zap.String("query_id", queryID),
				zap.String("strategy", e.sampler.Name()),
				zap.Int("total_rows", req.Dataset.Len()),
				zap.Int("sampled_rows", view.Len()),
			)
		}

		resp.Results = e.dispatch(view, parsed)
		resp.Narrative = narrateResults(resp.Results)
	}

	resp.LatencyMS = int(time.Since(startTime).Milliseconds())

	e.recordMetrics(resp)
	e.recordHistory(req, resp)

	// Clarifications are never cached: the user's next message changes the
	// outcome. Analyses are cached even when some analyzers failed on data
	// errors, since re-running cannot succeed on identical input. The cache
	// holds its own snapshot so callers rewording the returned narrative
	// never touch the stored entry.
	if resp.Clarification == nil && parsed.PrimaryAction != intent.ActionExplore {
		snapshot := *resp
		e.cache.Put(key, &snapshot)
	}

	logger.Info("Query processed",
		zap.String("query_id", queryID),
		zap.String("analysis_type", string(resp.AnalysisType)),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("clarification", resp.Clarification != nil),
		zap.Int("latency_ms", resp.LatencyMS),
	)

	return resp, nil
}

// dispatch runs the analyzer(s) implied by the intent. A summarize action
// fans out across every analyzer whose bindings are available; individual
// failures are captured per invocation and never abort siblings.
func (e *Engine) dispatch(view *dataset.Dataset, parsed intent.Intent) []AnalyzerResult {
	if parsed.PrimaryAction == intent.ActionSummarize || parsed.AnalysisType == intent.TypeGeneral {
		var results []AnalyzerResult
		results = append(results, e.runOutlier(view, parsed.Bindings))
		if parsed.Bindings.Column(profile.RoleBudget) != "" {
			results = append(results, e.runBudget(view, parsed.Bindings))
		}
		if parsed.Bindings.Column(profile.RoleDate) != "" {
			results = append(results, e.runPeriod(view, parsed.Bindings))
			results = append(results, e.runTrend(view, parsed.Bindings))
		}
		if parsed.Bindings.Column(profile.RolePrimaryCategory) != "" {
			results = append(results, e.runContribution(view, parsed.Bindings))
		}
		return results
	}

	switch parsed.AnalysisType {
	case intent.TypeOutlier:
		return []AnalyzerResult{e.runOutlier(view, parsed.Bindings)}
	case intent.TypeVariance:
		if parsed.Variant == intent.VariantPeriod {
			return []AnalyzerResult{e.runPeriod(view, parsed.Bindings)}
		}
		return []AnalyzerResult{e.runBudget(view, parsed.Bindings)}
	case intent.TypeTrend:
		return []AnalyzerResult{e.runTrend(view, parsed.Bindings)}
	case intent.TypeContribution:
		return []AnalyzerResult{e.runContribution(view, parsed.Bindings)}
	default:
		return nil
	}
}

func (e *Engine) runOutlier(view *dataset.Dataset, b analysis.Bindings) AnalyzerResult {
	res, err := analysis.DetectOutliers(view, b, e.params.Outlier)
	if err != nil {
		return failed("outlier", err)
	}
	return AnalyzerResult{Kind: "outlier", Success: true, Outlier: res, Summary: summarizeOutliers(res)}
}

func (e *Engine) runBudget(view *dataset.Dataset, b analysis.Bindings) AnalyzerResult {
	res, err := analysis.AnalyzeBudgetVariance(view, b, e.params.Budget)
	if err != nil {
		return failed("budget_variance", err)
	}
	return AnalyzerResult{Kind: "budget_variance", Success: true, Budget: res, Summary: summarizeBudget(res)}
}

func (e *Engine) runPeriod(view *dataset.Dataset, b analysis.Bindings) AnalyzerResult {
	res, err := analysis.AnalyzePeriodVariance(view, b, e.params.Period)
	if err != nil {
		return failed("period_variance", err)
	}
	return AnalyzerResult{Kind: "period_variance", Success: true, Period: res, Summary: summarizePeriod(res)}
}

func (e *Engine) runTrend(view *dataset.Dataset, b analysis.Bindings) AnalyzerResult {
	res, err := analysis.AnalyzeTrend(view, b, e.params.Trend)
	if err != nil {
		return failed("trend", err)
	}
	return AnalyzerResult{Kind: "trend", Success: true, Trend: res, Summary: summarizeTrend(res)}
}

func (e *Engine) runContribution(view *dataset.Dataset, b analysis.Bindings) AnalyzerResult {
	res, err := analysis.AnalyzeContribution(view, b, e.params.Contribution)
	if err != nil {
		return failed("contribution", err)
	}
	return AnalyzerResult{Kind: "contribution", Success: true, Contribution: res, Summary: summarizeContribution(res)}
}

func failed(kind string, err error) AnalyzerResult {
	logger.Warn("Analyzer failed", zap.String("analyzer", kind), zap.Error(err))
	return AnalyzerResult{Kind: kind, Success: false, Error: err.Error()}
}

// applyOverrides merges explicit user column choices over the parser's
// bindings. When the overrides fill every required role, a clarification
// that was only about bindings is withdrawn.
func applyOverrides(parsed intent.Intent, overrides analysis.Bindings) intent.Intent {
	if len(overrides) == 0 {
		return parsed
	}
	if parsed.Bindings == nil {
		parsed.Bindings = analysis.Bindings{}
	}
	for role, col := range overrides {
		parsed.Bindings[role] = col
	}

	if parsed.NeedsClarification && parsed.AnalysisType != intent.TypeGeneral {
		satisfied := true
		for _, role := range parsed.RequiredRoles {
			if parsed.Bindings.Column(role) == "" {
				satisfied = false
				break
			}
		}
		if satisfied {
			parsed.NeedsClarification = false
			parsed.ClarificationReason = ""
			parsed.PrimaryAction = intent.ActionAnalyze
		}
	}
	return parsed
}

func (e *Engine) recordMetrics(resp *Response) {
	status := "ok"
	if resp.Clarification != nil {
		status = "clarification"
	} else {
		for _, r := range resp.Results {
			if !r.Success {
				status = "partial"
				break
			}
		}
	}
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues(string(resp.AnalysisType)).Observe(float64(resp.LatencyMS) / 1000)
	metrics.ConfidenceScore.Observe(resp.Confidence)
}

func (e *Engine) recordHistory(req Request, resp *Response) {
	if e.db == nil {
		return
	}
	record := &models.QueryRecord{
		ID:           resp.ID,
		UserID:       req.UserID,
		DatasetName:  req.DatasetName,
		QueryText:    req.Query,
		Action:       string(resp.Action),
		AnalysisType: string(resp.AnalysisType),
		Confidence:   resp.Confidence,
		Clarified:    resp.Clarification != nil,
		SampledRows:  resp.SampledRows,
		Narrative:    resp.Narrative,
		LatencyMS:    resp.LatencyMS,
		CreatedAt:    time.Now(),
	}
	if err := e.db.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}
