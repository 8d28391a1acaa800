package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteReturnsContent(t *testing.T) {
	srv := stubServer(t, `{
		"id": "1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Revenue spiked in March."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 6, "total_tokens": 18}
	}`)

	c := NewClientWithBaseURL("test-key", srv.URL+"/v1", "gpt-4", 0.3, 200)
	resp, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "rewrite",
		UserPrompt:   "summary",
	})
	require.NoError(t, err)

	assert.Equal(t, "Revenue spiked in March.", resp.Content)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
}

func TestCompleteEmptyChoicesIsAnError(t *testing.T) {
	srv := stubServer(t, `{
		"id": "1",
		"object": "chat.completion",
		"choices": [],
		"usage": {"prompt_tokens": 12, "completion_tokens": 0, "total_tokens": 12}
	}`)

	c := NewClientWithBaseURL("test-key", srv.URL+"/v1", "gpt-4", 0.3, 200)
	_, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "rewrite",
		UserPrompt:   "summary",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
