// Package provider adapts an OpenAI-compatible chat/embeddings endpoint
// (OpenRouter in the default configuration) to the narrow interfaces the
// curation pipeline consumes. Response normalization happens here: business
// logic never sees a half-shaped provider payload, only values or LLMError.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// embedBatchSize caps inputs per embeddings request.
	embedBatchSize = 100

	maxRetries = 3
)

// initialBackoff is a var so tests can shrink the retry delay.
var initialBackoff = 500 * time.Millisecond

// LLMError is any transport or response-shape failure from the model
// provider. Callers downgrade it to a sentinel result instead of failing a
// whole batch; it is never cached, so a later run retries naturally.
type LLMError struct {
	Op  string
	Err error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// ChatRequest is a single completion call. Evaluative prompts run at
// temperature 0; rewriting uses a low nonzero temperature.
type ChatRequest struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Chatter issues one completion and returns the raw assistant text.
type Chatter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder returns one fixed-dimension vector per input text, in input
// order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client implements Chatter and Embedder on an OpenAI-compatible API.
type Client struct {
	api        *openai.Client
	embedModel string
}

// NewClient builds a provider client. baseURL must include the API version
// prefix (e.g. https://openrouter.ai/api/v1); an empty baseURL keeps the
// upstream default.
func NewClient(apiKey, baseURL, embedModel string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		embedModel: embedModel,
	}
}

// Complete sends one chat completion. Rate-limited calls are retried with
// exponential backoff; completions are idempotent reads, unlike card-service
// mutations, which are never retried.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	apiReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, apiReq)
		return err
	})
	if err != nil {
		return "", &LLMError{Op: "completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &LLMError{Op: "completion", Err: errors.New("response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedBatch embeds texts in request batches of at most embedBatchSize,
// preserving input order. A response whose vector count does not match its
// input count is a shape failure and surfaces as LLMError.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		var resp openai.EmbeddingResponse
		err := c.withRetry(ctx, func() error {
			var err error
			resp, err = c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(c.embedModel),
			})
			return err
		})
		if err != nil {
			return nil, &LLMError{Op: "embeddings", Err: err}
		}
		if len(resp.Data) != len(batch) {
			return nil, &LLMError{
				Op:  "embeddings",
				Err: fmt.Errorf("got %d vectors for %d inputs", len(resp.Data), len(batch)),
			}
		}
		for _, item := range resp.Data {
			vectors = append(vectors, item.Embedding)
		}
	}

	return vectors, nil
}

// withRetry retries op on HTTP 429 with exponential backoff, up to
// maxRetries attempts. Every other failure returns immediately.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isRateLimit(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
