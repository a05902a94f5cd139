package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/pkg/httpx"
	"github.com/meridianvc/dealflow-backend/internal/utils"
)

// CompletionOptions mirror the options the engines tune per call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Client is the OpenAI API surface the backend consumes. Embeddings are
// single-shot here; the embedding layer owns that retry policy so its attempt
// ceiling is exact. Completions retry internally on transient failures.
type Client interface {
	// Embed performs one embeddings call, no retries.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Complete returns the assistant text for a system+user prompt pair.
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbedModel     string
	TimeoutSeconds int
	MaxRetries     int
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		BaseURL:        strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log), "/"),
		APIKey:         utils.GetEnv("OPENAI_API_KEY", "", log),
		Model:          utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log),
		EmbedModel:     utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log),
		TimeoutSeconds: utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60, log),
		MaxRetries:     utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 3, log),
	}
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

// HTTPError carries the upstream status so retry classification can see it.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// doRetry wraps doOnce in the exponential-backoff retry loop used for
// completion calls.
func (c *client) doRetry(ctx context.Context, path string, body any, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt == c.cfg.MaxRetries {
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	_, raw, err := c.doOnce(ctx, "/v1/embeddings", embeddingsRequest{
		Model: c.cfg.EmbedModel,
		Input: clean,
	})
	if err != nil {
		return nil, err
	}
	var resp embeddingsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai decode error: %w", err)
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("embeddings response missing index %d (requested=%d returned=%d)",
				i, len(clean), len(resp.Data))
		}
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.JSONMode {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}

	var resp chatResponse
	if err := c.doRetry(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
