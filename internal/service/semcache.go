package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var semTracer = otel.Tracer("service/semcache")

// SemanticCache answers "have we categorized something like this before?".
// It stores (prompt, answer, embedding) triples and finds the nearest
// previously answered prompt by embedding similarity, so near-identical
// transaction descriptions skip the language-model call entirely.
type SemanticCache struct {
	store     port.SemanticCacheStore
	embedder  port.Embedder
	threshold float64
	neighbors int
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSemanticCache creates the semantic cache service. threshold is the
// minimum similarity for a lookup to count as a hit; neighbors is the
// search breadth (top-1 in production).
func NewSemanticCache(
	store port.SemanticCacheStore,
	embedder port.Embedder,
	threshold float64,
	neighbors int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SemanticCache {
	if neighbors < 1 {
		neighbors = 1
	}
	return &SemanticCache{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		neighbors: neighbors,
		metrics:   metrics,
		logger:    logger,
	}
}

// Lookup embeds text and returns the answer stored for the nearest prompt,
// if its similarity clears the threshold. The bool is false on a miss and
// on any embedding/search failure: the caller falls through to the model.
func (s *SemanticCache) Lookup(ctx context.Context, text string) (string, bool) {
	ctx, span := semTracer.Start(ctx, "SemanticCache.Lookup")
	defer span.End()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("semantic cache: embedding failed", zap.Error(err))
		s.metrics.IncrExternalError("embedding")
		return "", false
	}

	matches, err := s.store.NearestNeighbor(ctx, vec, s.neighbors)
	if err != nil {
		s.logger.Warn("semantic cache: search failed", zap.Error(err))
		return "", false
	}

	if len(matches) == 0 || matches[0].Similarity < s.threshold {
		s.metrics.IncrCacheMiss("semantic")
		return "", false
	}

	best := matches[0]
	span.SetAttributes(attribute.Float64("similarity", best.Similarity))
	s.logger.Debug("semantic cache hit",
		zap.String("prompt", best.Prompt),
		zap.Float64("similarity", best.Similarity),
	)
	s.metrics.IncrCacheHit("semantic")
	return best.Answer, true
}

// Store persists a (text, answer) pair. Dedup is on exact prompt text, not
// similarity: if the same text was stored before with a different answer
// the row is overwritten in place, same answer is a no-op. The embedding is
// only computed for genuinely new rows.
func (s *SemanticCache) Store(ctx context.Context, text, answer string) error {
	ctx, span := semTracer.Start(ctx, "SemanticCache.Store")
	defer span.End()

	existing, err := s.store.FindByPrompt(ctx, text)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Answer == answer {
			s.logger.Debug("semantic cache: entry already stored", zap.String("prompt", text))
			return nil
		}
		s.logger.Debug("semantic cache: overwriting answer",
			zap.String("prompt", text),
			zap.String("old", existing.Answer),
			zap.String("new", answer),
		)
		return s.store.UpdateAnswer(ctx, existing.ID, answer)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.metrics.IncrExternalError("embedding")
		return err
	}

	return s.store.Insert(ctx, &domain.CachedAnswer{
		ID:        uuid.NewString(),
		Prompt:    text,
		Answer:    answer,
		Embedding: vec,
	})
}

// Update is the correction path: when a user manually re-categorizes an
// imported entry, the cache row for its description is re-stored so future
// lookups return the corrected category.
func (s *SemanticCache) Update(ctx context.Context, text, answer string) error {
	return s.Store(ctx, text, answer)
}
