package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "data_agent_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"analysis_type"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_agent_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "data_agent_intent_confidence",
			Help:    "Intent parser confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_agent_cache_hits_total",
			Help: "Total result cache hits",
		},
		[]string{"tier"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_agent_cache_misses_total",
			Help: "Total result cache misses",
		},
		[]string{"tier"},
	)

	DatasetsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_agent_datasets_loaded_total",
			Help: "Total datasets loaded",
		},
		[]string{"format"},
	)

	DatasetRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "data_agent_dataset_rows",
			Help:    "Row counts of loaded datasets",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
	)

	SamplingApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "data_agent_sampling_applied_total",
			Help: "Queries where the dataset was sampled before analysis",
		},
	)

	NarrativeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_agent_narrative_requests_total",
			Help: "LLM narrative polish requests",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DatasetsLoaded)
	prometheus.MustRegister(DatasetRows)
	prometheus.MustRegister(SamplingApplied)
	prometheus.MustRegister(NarrativeRequests)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
