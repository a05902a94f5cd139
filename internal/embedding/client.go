package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/pkg/httpx"
)

const (
	// DefaultDimension matches text-embedding-3-small.
	DefaultDimension = 1536
	// maxInputChars bounds what we send to the provider; longer inputs are
	// truncated, not rejected.
	maxInputChars = 8000

	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// ErrInvalidInput reports an empty or blank embedding input. Caller bug, not
// a provider condition.
var ErrInvalidInput = errors.New("embedding: input text is empty")

// UnavailableError is returned once the retry budget is exhausted on
// transient provider failures.
type UnavailableError struct {
	Attempts int
	Last     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding: provider unavailable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *UnavailableError) Unwrap() error { return e.Last }

// DimensionMismatchError reports a similarity computation over vectors of
// different lengths.
type DimensionMismatchError struct {
	LenA, LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding: dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// Provider is the raw single-shot embeddings capability (the OpenAI client).
type Provider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Client validates, truncates and retries on top of a Provider.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type client struct {
	log         *logger.Logger
	provider    Provider
	dimension   int
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

type Option func(*client)

func WithDimension(d int) Option {
	return func(c *client) {
		if d > 0 {
			c.dimension = d
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// withSleep substitutes the backoff sleeper; tests use it to run instantly.
func withSleep(fn func(time.Duration)) Option {
	return func(c *client) { c.sleep = fn }
}

func NewClient(log *logger.Logger, provider Provider, opts ...Option) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if provider == nil {
		return nil, fmt.Errorf("embedding provider required")
	}
	c := &client{
		log:         log.With("service", "EmbeddingClient"),
		provider:    provider,
		dimension:   DefaultDimension,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) Dimension() int { return c.dimension }

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch validates and truncates every input, then calls the provider
// with up to maxAttempts tries, backing off exponentially on rate-limit and
// server-error responses. Non-retryable failures surface immediately.
func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, ErrInvalidInput
		}
		clean[i] = truncate(t, maxInputChars)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			c.log.Warn("Embedding call retrying",
				"attempt", attempt+1, "max_attempts", c.maxAttempts, "delay", delay.String())
			c.sleep(delay)
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		vecs, err := c.provider.Embed(ctx, clean)
		if err == nil {
			if len(vecs) != len(clean) {
				return nil, fmt.Errorf("embedding: provider returned %d vectors for %d inputs", len(vecs), len(clean))
			}
			return vecs, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			return nil, err
		}
	}
	return nil, &UnavailableError{Attempts: c.maxAttempts, Last: lastErr}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
