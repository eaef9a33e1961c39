package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
)

// Client talks to an OpenAI-compatible HTTP API. One client serves either
// the embeddings or the chat completions surface depending on which methods
// are called.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// NewClient builds a provider client from configuration. It returns
// ErrUnavailable when the configured API key environment variable is empty,
// so callers can fall back to degraded behavior.
func NewClient(pcfg config.ProviderConfig, rcfg config.RetryConfig, logger *slog.Logger) (*Client, error) {
	apiKey := os.Getenv(pcfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set: %w", pcfg.APIKeyEnv, ErrUnavailable)
	}
	return &Client{
		httpClient:  &http.Client{Timeout: time.Duration(pcfg.TimeoutMs) * time.Millisecond},
		baseURL:     pcfg.BaseURL,
		apiKey:      apiKey,
		model:       pcfg.Model,
		maxAttempts: rcfg.MaxAttempts,
		backoff:     time.Duration(rcfg.InitialBackoffMs) * time.Millisecond,
		logger:      logger,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder against the /embeddings endpoint.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embeddingResponse
	err := withRetry(ctx, c.logger, c.maxAttempts, c.backoff, "embed", func() error {
		return c.post(ctx, "/embeddings", embeddingRequest{Model: c.model, Input: text}, &out)
	})
	if err != nil {
		return nil, mioerr.Upstream("llm", "embedding request failed", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, mioerr.Upstream("llm", "embedding response carried no vector", nil)
	}
	return out.Data[0].Embedding, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Completer against the /chat/completions endpoint.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
	var out chatResponse
	err := withRetry(ctx, c.logger, c.maxAttempts, c.backoff, "complete", func() error {
		return c.post(ctx, "/chat/completions", req, &out)
	})
	if err != nil {
		return "", mioerr.Upstream("llm", "completion request failed", err)
	}
	if len(out.Choices) == 0 {
		return "", mioerr.Upstream("llm", "completion response carried no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}

// post sends one JSON request and decodes the response. HTTP 429 and 5xx are
// transient; other failures are final.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures and timeouts are worth retrying.
		return markTransient(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return markTransient(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return markTransient(fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(data, 200)))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(data, 200))
	}
	return json.Unmarshal(data, out)
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
