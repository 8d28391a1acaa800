package handlers

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	rediscache "github.com/data-agent/backend/internal/cache/redis"
	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/llm"
	"github.com/data-agent/backend/internal/loader"
	"github.com/data-agent/backend/internal/profile"
	"github.com/data-agent/backend/internal/storage/models"
	"github.com/data-agent/backend/internal/storage/sqlite"
	"github.com/data-agent/backend/pkg/logger"
	"github.com/data-agent/backend/pkg/utils"
)

type DatasetHandler struct {
	registry *Registry
	db       *sqlite.Client
	redis    *rediscache.Client
	llm      *llm.Client // nil when question suggestions are disabled
}

func NewDatasetHandler(registry *Registry, db *sqlite.Client, redis *rediscache.Client, llmClient *llm.Client) *DatasetHandler {
	return &DatasetHandler{
		registry: registry,
		db:       db,
		redis:    redis,
		llm:      llmClient,
	}
}

// UploadDataset accepts either a multipart file upload (field "file", name
// taken from field "name" or the filename) or a JSON body with name, format,
// and content. Re-uploading a name replaces the dataset and invalidates any
// cached results for its previous contents.
func (h *DatasetHandler) UploadDataset(c *fiber.Ctx) error {
	name, format, content, err := readUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var ds *dataset.Dataset
	switch format {
	case "csv":
		ds, err = loader.LoadCSV(content)
	case "html":
		ds, err = loader.LoadHTMLTable(string(content))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported format; use csv or html",
		})
	}
	if err != nil {
		logger.Error("Failed to load dataset", zap.String("name", name), zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	fingerprint := utils.HashString(string(content))

	if previous, ok := h.registry.Get(name); ok && h.redis != nil && previous.Fingerprint != fingerprint {
		if err := h.redis.InvalidateDataset(c.Context(), previous.Fingerprint); err != nil {
			logger.Warn("Failed to invalidate cached results", zap.Error(err))
		}
	}

	h.registry.Put(&RegistryEntry{
		Name:        name,
		Fingerprint: fingerprint,
		Format:      format,
		Data:        ds,
		UploadedAt:  time.Now(),
	})

	if h.db != nil {
		columnsJSON, _ := json.Marshal(ds.Columns)
		if err := h.db.UpsertDataset(&models.DatasetRecord{
			Name:        name,
			Fingerprint: fingerprint,
			Format:      format,
			RowCount:    ds.Len(),
			ColumnCount: len(ds.Columns),
			Columns:     string(columnsJSON),
			UploadedAt:  time.Now(),
		}); err != nil {
			logger.Warn("Failed to persist dataset record", zap.Error(err))
		}
	}

	profiles := profile.Profile(ds)

	logger.Info("Dataset uploaded",
		zap.String("name", name),
		zap.String("format", format),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns)),
	)

	body := fiber.Map{
		"name":     name,
		"rows":     ds.Len(),
		"columns":  ds.Columns,
		"profiles": profiles,
	}
	if suggestions := h.suggestQuestions(c, ds.Columns); len(suggestions) > 0 {
		body["suggested_questions"] = suggestions
	}

	return c.Status(fiber.StatusCreated).JSON(body)
}

// suggestQuestions asks the LLM for starter questions over the new columns.
// Best-effort: an error or a disabled client just means no suggestions.
func (h *DatasetHandler) suggestQuestions(c *fiber.Ctx, columns []string) []string {
	if h.llm == nil {
		return nil
	}

	raw, err := h.llm.SuggestQuestions(c.Context(), columns)
	if err != nil {
		logger.Warn("Question suggestion failed", zap.Error(err))
		return nil
	}

	var suggestions []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			suggestions = append(suggestions, line)
		}
	}
	return suggestions
}

func (h *DatasetHandler) ListDatasets(c *fiber.Ctx) error {
	names := h.registry.Names()

	datasets := make([]fiber.Map, 0, len(names))
	for _, name := range names {
		entry, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		datasets = append(datasets, fiber.Map{
			"name":        entry.Name,
			"format":      entry.Format,
			"rows":        entry.Data.Len(),
			"columns":     entry.Data.Columns,
			"uploaded_at": entry.UploadedAt,
		})
	}

	return c.JSON(fiber.Map{"datasets": datasets})
}

func (h *DatasetHandler) GetDatasetProfile(c *fiber.Ctx) error {
	name := c.Params("name")

	entry, ok := h.registry.Get(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Dataset not found",
		})
	}

	return c.JSON(fiber.Map{
		"name":     entry.Name,
		"rows":     entry.Data.Len(),
		"columns":  entry.Data.Columns,
		"profiles": profile.Profile(entry.Data),
	})
}

func (h *DatasetHandler) DeleteDataset(c *fiber.Ctx) error {
	name := c.Params("name")

	entry, ok := h.registry.Get(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Dataset not found",
		})
	}

	if h.redis != nil {
		if err := h.redis.InvalidateDataset(c.Context(), entry.Fingerprint); err != nil {
			logger.Warn("Failed to invalidate cached results", zap.Error(err))
		}
	}

	h.registry.Delete(name)

	return c.JSON(fiber.Map{"status": "deleted"})
}

func readUpload(c *fiber.Ctx) (name, format string, content []byte, err error) {
	if file, ferr := c.FormFile("file"); ferr == nil {
		name = c.FormValue("name")
		if name == "" {
			name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
		}
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
		if format == "htm" {
			format = "html"
		}

		f, oerr := file.Open()
		if oerr != nil {
			return "", "", nil, fiber.NewError(fiber.StatusBadRequest, "Failed to open uploaded file")
		}
		defer f.Close()

		content, err = io.ReadAll(f)
		if err != nil {
			return "", "", nil, fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
		}
		return name, format, content, nil
	}

	var req struct {
		Name    string `json:"name"`
		Format  string `json:"format"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return "", "", nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" || req.Content == "" {
		return "", "", nil, fiber.NewError(fiber.StatusBadRequest, "name and content are required")
	}

	format = strings.ToLower(req.Format)
	if format == "" {
		format = "csv"
	}

	return req.Name, format, []byte(req.Content), nil
}
