package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/analysis"
	rediscache "github.com/data-agent/backend/internal/cache/redis"
	"github.com/data-agent/backend/internal/intent"
	"github.com/data-agent/backend/internal/llm"
	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/internal/profile"
	"github.com/data-agent/backend/internal/query"
	"github.com/data-agent/backend/internal/storage/models"
	"github.com/data-agent/backend/internal/storage/sqlite"
	"github.com/data-agent/backend/pkg/logger"
	"github.com/data-agent/backend/pkg/utils"
)

type QueryHandler struct {
	engine   *query.Engine
	registry *Registry
	db       *sqlite.Client
	redis    *rediscache.Client // nil when the second cache tier is disabled
	llm      *llm.Client        // nil when narrative polish is disabled
}

func NewQueryHandler(engine *query.Engine, registry *Registry, db *sqlite.Client, redis *rediscache.Client, llmClient *llm.Client) *QueryHandler {
	return &QueryHandler{
		engine:   engine,
		registry: registry,
		db:       db,
		redis:    redis,
		llm:      llmClient,
	}
}

type queryRequest struct {
	Query    string            `json:"query"`
	Dataset  string            `json:"dataset"`
	UserID   string            `json:"user_id"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}
	if req.Dataset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Dataset name is required",
		})
	}

	entry, ok := h.registry.Get(req.Dataset)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Dataset not found; upload it first",
		})
	}

	queryHash := utils.HashString(intent.Normalize(req.Query))
	if h.redis != nil && len(req.Bindings) == 0 {
		var cached query.Response
		found, err := h.redis.GetResult(c.Context(), entry.Fingerprint, queryHash, &cached)
		if err != nil {
			logger.Warn("Redis cache lookup failed", zap.Error(err))
		} else if found {
			metrics.CacheHits.WithLabelValues("redis").Inc()
			cached.CacheHit = true
			return c.JSON(cached)
		} else {
			metrics.CacheMisses.WithLabelValues("redis").Inc()
		}
	}

	response, err := h.engine.ProcessQuery(c.Context(), query.Request{
		Query:       req.Query,
		DatasetName: req.Dataset,
		Fingerprint: entry.Fingerprint,
		Dataset:     entry.Data,
		UserID:      req.UserID,
		Bindings:    toBindings(req.Bindings),
	})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.polish(c, req.Query, response)

	if h.redis != nil && response.Clarification == nil && len(req.Bindings) == 0 {
		if err := h.redis.SetResult(c.Context(), entry.Fingerprint, queryHash, response); err != nil {
			logger.Warn("Failed to write redis cache", zap.Error(err))
		}
	}

	return c.JSON(response)
}

// polish rewrites the narrative through the LLM when enabled. Any failure
// keeps the deterministic narrative, so answers never depend on the model.
func (h *QueryHandler) polish(c *fiber.Ctx, question string, resp *query.Response) {
	if h.llm == nil || resp.Clarification != nil || resp.Narrative == "" {
		return
	}

	polished, err := h.llm.PolishNarrative(c.Context(), question, resp.Narrative)
	if err != nil {
		logger.Warn("Narrative polish failed, using plain narrative", zap.Error(err))
		return
	}
	resp.Narrative = polished
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be between 1 and 200",
			})
		}
		limit = parsed
	}

	if h.db == nil {
		return c.JSON(fiber.Map{"history": []models.QueryRecord{}})
	}

	records, err := h.db.GetQueryHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to get query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get query history",
		})
	}
	if records == nil {
		records = []models.QueryRecord{}
	}

	return c.JSON(fiber.Map{"history": records})
}

func (h *QueryHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		QueryID string `json:"query_id"`
		Helpful bool   `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.QueryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_id is required",
		})
	}

	if h.db != nil {
		if err := h.db.StoreFeedback(&models.Feedback{
			QueryID: req.QueryID,
			Helpful: req.Helpful,
			Comment: req.Comment,
		}); err != nil {
			logger.Error("Failed to store feedback", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store feedback",
			})
		}
	}

	return c.JSON(fiber.Map{"status": "recorded"})
}

func toBindings(raw map[string]string) analysis.Bindings {
	if len(raw) == 0 {
		return nil
	}
	bindings := make(analysis.Bindings, len(raw))
	for role, col := range raw {
		bindings[profile.Role(role)] = col
	}
	return bindings
}
