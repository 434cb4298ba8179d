package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API with an API key
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGeminiClient creates a Gemini API client for text generation
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		limiter: newLimiter(),
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response text
func (g *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	}

	var resp *genai.GenerateContentResponse
	err := callWithRetry(ctx, g.limiter, "gemini.generate", func(ctx context.Context) error {
		var err error
		resp, err = g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no response candidates returned")
	}
	return text, nil
}

// Close is a no-op; the genai client holds no long-lived connections
func (g *GeminiClient) Close() error { return nil }

// Embedding task types; stored transcripts and search queries are embedded asymmetrically
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// GeminiEmbedder produces embeddings through the genai Models API
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewGeminiEmbedder builds an embedder on the Vertex backend when project is
// set and on the Gemini API backend otherwise
func NewGeminiEmbedder(ctx context.Context, apiKey, project, location, model string, dimensions int) (*GeminiEmbedder, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if project != "" {
		cc = &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		limiter:    newLimiter(),
	}, nil
}

// Embed returns the document embedding for text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalDocument)
}

// EmbedQuery returns the embedding of a search query
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskRetrievalQuery)
}

func (e *GeminiEmbedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	cfg := embedConfig(taskType, e.dimensions)

	var resp *genai.EmbedContentResponse
	err := callWithRetry(ctx, e.limiter, "gemini.embed", func(ctx context.Context) error {
		var err error
		resp, err = e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	values := resp.Embeddings[0].Values
	if len(values) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(values), e.dimensions)
	}
	return values, nil
}

func embedConfig(taskType string, dimensions int) *genai.EmbedContentConfig {
	dims := int32(dimensions)
	return &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dims,
	}
}

// Dimensions returns the configured vector size
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }
