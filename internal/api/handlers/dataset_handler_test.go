package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/llm"
)

func uploadApp(h *DatasetHandler) *fiber.App {
	app := fiber.New()
	app.Post("/datasets", h.UploadDataset)
	return app
}

func postJSON(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/datasets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp, decoded
}

func TestUploadDataset(t *testing.T) {
	registry := NewRegistry()
	h := NewDatasetHandler(registry, nil, nil, nil)
	app := uploadApp(h)

	resp, body := postJSON(t, app, `{"name":"sales","format":"csv","content":"region,revenue\nEast,100\nWest,200\n"}`)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(2), body["rows"])
	assert.NotContains(t, body, "suggested_questions")

	entry, ok := registry.Get("sales")
	require.True(t, ok)
	assert.NotEmpty(t, entry.Fingerprint)
	assert.Equal(t, 2, entry.Data.Len())
}

func TestUploadDatasetSuggestsQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Any outliers in revenue?\nHow does revenue break down by region?\n"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 14, "total_tokens": 24}
		}`)
	}))
	defer srv.Close()

	llmClient := llm.NewClientWithBaseURL("test-key", srv.URL+"/v1", "gpt-4", 0.5, 200)
	h := NewDatasetHandler(NewRegistry(), nil, nil, llmClient)
	app := uploadApp(h)

	resp, body := postJSON(t, app, `{"name":"sales","format":"csv","content":"region,revenue\nEast,100\nWest,200\n"}`)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	suggestions, ok := body["suggested_questions"].([]any)
	require.True(t, ok, "expected suggested_questions in upload response")
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Any outliers in revenue?", suggestions[0])
}

func TestUploadDatasetRejectsUnknownFormat(t *testing.T) {
	h := NewDatasetHandler(NewRegistry(), nil, nil, nil)
	app := uploadApp(h)

	resp, body := postJSON(t, app, `{"name":"sales","format":"xml","content":"<rows/>"}`)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "csv or html")
}
