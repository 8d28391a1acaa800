package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/pkg/circuitbreaker"
	"github.com/data-agent/backend/pkg/logger"
	"github.com/data-agent/backend/pkg/retry"
)

// Client polishes the deterministic analysis narrative into a conversational
// answer. The numbers always come from the analyzers; the model only rewords
// them, and every failure falls back to the raw narrative upstream.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens int) *Client {
	return newClient(openai.NewClient(apiKey), model, temperature, maxTokens)
}

// NewClientWithBaseURL targets a non-default API endpoint, e.g. a proxy or a
// local stub.
func NewClientWithBaseURL(apiKey, baseURL, model string, temperature float32, maxTokens int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newClient(openai.NewClientWithConfig(cfg), model, temperature, maxTokens)
}

func newClient(client *openai.Client, model string, temperature float32, maxTokens int) *Client {
	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// PolishNarrative rewrites a generated analysis summary in a conversational
// register without changing any figure. The prompt forbids the model from
// introducing numbers that are not in the input.
func (c *Client) PolishNarrative(ctx context.Context, question, narrative string) (string, error) {
	systemPrompt := `You are a data analyst assistant. Rewrite the provided analysis summary as a clear,
friendly answer to the user's question.

Rules:
1. Use ONLY the numbers and facts in the summary. Never invent or recompute figures.
2. Keep every statistic from the summary that answers the question.
3. Be concise: two to four sentences.
4. If the summary reports an error or missing data, explain plainly what the user can do about it.`

	userPrompt := fmt.Sprintf("Question: %s\n\nAnalysis summary:\n%s", question, narrative)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.3,
		MaxTokens:    400,
	})

	if err != nil {
		metrics.NarrativeRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to polish narrative: %w", err)
	}

	metrics.NarrativeRequests.WithLabelValues("ok").Inc()

	logger.Debug("Narrative polished",
		zap.Int("input_length", len(narrative)),
		zap.Int("output_length", len(resp.Content)),
	)

	return resp.Content, nil
}

// SuggestQuestions proposes follow-up questions from the dataset's column
// names, used by the explore flow when a dataset is first uploaded.
func (c *Client) SuggestQuestions(ctx context.Context, columns []string) (string, error) {
	systemPrompt := `You are a data analyst assistant. Given a dataset's column names, suggest three
short questions the user could ask about outliers, budget vs actual variance, trends over time,
or category contribution. One question per line, no numbering.`

	userPrompt := fmt.Sprintf("Columns: %v", columns)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.5,
		MaxTokens:    200,
	})

	if err != nil {
		return "", fmt.Errorf("failed to suggest questions: %w", err)
	}

	return resp.Content, nil
}
