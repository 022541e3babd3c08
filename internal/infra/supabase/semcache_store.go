package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
)

// supabaseCachedAnswer maps the category_cache table columns. The embedding
// column is pgvector; PostgREST serializes it as a JSON array.
type supabaseCachedAnswer struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Answer    string    `json:"answer"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *supabaseCachedAnswer) toDomain() domain.CachedAnswer {
	return domain.CachedAnswer{
		ID:        r.ID,
		Prompt:    r.Prompt,
		Answer:    r.Answer,
		Embedding: r.Embedding,
		CreatedAt: r.CreatedAt,
	}
}

// FindByPrompt looks up a cache row by exact prompt text.
// Returns (nil, nil) when no row matches.
func (c *Client) FindByPrompt(ctx context.Context, prompt string) (*domain.CachedAnswer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CacheFindByPrompt")
	defer span.End()

	var found *domain.CachedAnswer

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("category_cache?prompt=eq.%s&limit=1", url.QueryEscape(prompt))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				found = nil
				return nil
			}

			var rows []supabaseCachedAnswer
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode cache row: %w", err)
			}
			if len(rows) == 0 {
				found = nil
				return nil
			}
			row := rows[0].toDomain()
			found = &row
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/cache", Err: err}
	}
	return found, nil
}

// NearestNeighbor runs the pgvector cosine search through the
// match_category_cache stored procedure. Results come back best first with
// a similarity column.
func (c *Client) NearestNeighbor(ctx context.Context, embedding []float64, limit int) ([]domain.CachedMatch, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CacheNearestNeighbor")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	var matches []domain.CachedMatch

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRPC(ctx, "match_category_cache", map[string]any{
				"query_embedding": embedding,
				"match_count":     limit,
			})
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				matches = []domain.CachedMatch{}
				return nil
			}

			var rows []struct {
				supabaseCachedAnswer
				Similarity float64 `json:"similarity"`
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode matches: %w", err)
			}
			matches = make([]domain.CachedMatch, 0, len(rows))
			for _, r := range rows {
				matches = append(matches, domain.CachedMatch{
					CachedAnswer: r.supabaseCachedAnswer.toDomain(),
					Similarity:   r.Similarity,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/cache", Err: err}
	}
	return matches, nil
}

// Insert stores a new (prompt, answer, embedding) triple.
func (c *Client) Insert(ctx context.Context, answer *domain.CachedAnswer) error {
	ctx, span := tracer.Start(ctx, "Supabase.CacheInsert")
	defer span.End()

	data := map[string]any{
		"id":        answer.ID,
		"prompt":    answer.Prompt,
		"answer":    answer.Answer,
		"embedding": answer.Embedding,
	}
	if _, err := c.doPost(ctx, "category_cache", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/cache", Err: err}
	}
	return nil
}

// UpdateAnswer overwrites the answer on an existing cache row in place.
func (c *Client) UpdateAnswer(ctx context.Context, id, answer string) error {
	ctx, span := tracer.Start(ctx, "Supabase.CacheUpdateAnswer")
	defer span.End()

	path := fmt.Sprintf("category_cache?id=eq.%s", url.QueryEscape(id))
	if err := c.doPatch(ctx, path, map[string]any{"answer": answer}); err != nil {
		return &domain.ErrExternalService{Service: "supabase/cache", Err: err}
	}
	return nil
}
