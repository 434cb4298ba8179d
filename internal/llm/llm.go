package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fmuoria/interview-notes/internal/config"
)

const (
	// requestDelay is the minimum spacing between model calls (15 RPM free tier)
	requestDelay = 4 * time.Second
	// maxRetries is how many times a rate-limited call is retried
	maxRetries = 3
	// retryBackoff is the first wait after a rate-limit error
	retryBackoff = 10 * time.Second
)

// Generator produces text from a prompt
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Embedder turns text into a fixed-size vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NewGenerator picks the Vertex AI backend when a cloud project is configured
// and the Gemini API key backend otherwise
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	if cfg.GoogleCloudProject != "" {
		return NewVertexAIClient(ctx, cfg.GoogleCloudProject, cfg.GoogleCloudLocation, cfg.GeminiModel)
	}
	if cfg.GeminiAPIKey != "" {
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return nil, fmt.Errorf("no Gemini credentials configured")
}

// NewEmbedder builds the embedding client for the configured backend
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	return NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleCloudProject, cfg.GoogleCloudLocation, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
}

// newLimiter returns the shared pacing limiter for one client
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(requestDelay), 1)
}

// callWithRetry paces fn through the limiter and retries it on rate-limit errors
func callWithRetry(ctx context.Context, limiter *rate.Limiter, name string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRateLimitError(err) {
			return backoff.Permanent(err)
		}
		slog.Warn("rate limited by model API", "call", name, "attempt", attempt, "error", err)
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}

// isRateLimitError reports whether err looks like a quota or rate-limit failure
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"resourceexhausted", "resource exhausted", "429", "rate limit", "quota"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
