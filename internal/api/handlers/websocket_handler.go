package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/query"
	"github.com/data-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine   *query.Engine
	registry *Registry
}

func NewWebSocketHandler(engine *query.Engine, registry *Registry) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		registry: registry,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			Dataset string `json:"dataset"`
			UserID  string `json:"user_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		logger.Info("Processing WebSocket query",
			zap.String("query", msg.Content),
			zap.String("dataset", msg.Dataset),
		)

		err = h.streamResponse(c, msg.Content, msg.Dataset, msg.UserID)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, queryText, datasetName, userID string) error {
	ctx := context.Background()

	entry, ok := h.registry.Get(datasetName)
	if !ok {
		h.sendError(c, "Dataset not found; upload it first")
		return nil
	}

	h.sendChunk(c, "status", "Analyzing...")

	response, err := h.engine.ProcessQuery(ctx, query.Request{
		Query:       queryText,
		DatasetName: datasetName,
		Fingerprint: entry.Fingerprint,
		Dataset:     entry.Data,
		UserID:      userID,
	})
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Narrative)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *query.Response) error {
	return c.WriteJSON(map[string]interface{}{
		"type":          "complete",
		"message_id":    response.ID,
		"analysis_type": response.AnalysisType,
		"confidence":    response.Confidence,
		"clarification": response.Clarification,
		"results":       response.Results,
		"latency_ms":    response.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
