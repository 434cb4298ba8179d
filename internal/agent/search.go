package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/models"
)

// FindSimilar returns up to n interviews most similar to the given one
func (a *InterviewAgent) FindSimilar(ctx context.Context, id uuid.UUID, n int) ([]models.SimilarInterview, error) {
	n = clampCount(n)

	embedding, err := a.store.GetEmbedding(ctx, id)
	if err != nil {
		return nil, err
	}

	// one extra row since the interview matches itself
	matches, err := a.store.MatchInterviews(ctx, embedding, a.threshold, n+1)
	if err != nil {
		return nil, err
	}

	similar := make([]models.SimilarInterview, 0, n)
	for _, m := range matches {
		if m.ID == id {
			continue
		}
		if len(similar) == n {
			break
		}
		similar = append(similar, m)
	}
	return similar, nil
}

// Search embeds a free-text query and returns the closest interviews
func (a *InterviewAgent) Search(ctx context.Context, query string, n int) ([]models.SimilarInterview, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	embedding, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return a.store.MatchInterviews(ctx, embedding, a.threshold, clampCount(n))
}

func clampCount(n int) int {
	if n <= 0 {
		return defaultMatchCount
	}
	return min(n, maxMatchCount)
}
