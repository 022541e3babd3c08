package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var classifierTracer = otel.Tracer("service/classifier")

// Classifier assigns a category to a transaction description. It consults
// the semantic cache first and only falls back to the language model on a
// miss. Classification is best-effort throughout: any failure yields an
// uncategorized entry, never an error.
type Classifier struct {
	categories port.CategoryStore
	semantic   *SemanticCache
	completer  port.Completer
	candCache  port.Cache[[]domain.Category]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewClassifier(
	categories port.CategoryStore,
	semantic *SemanticCache,
	completer port.Completer,
	candCache port.Cache[[]domain.Category],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		categories: categories,
		semantic:   semantic,
		completer:  completer,
		candCache:  candCache,
		metrics:    metrics,
		logger:     logger,
	}
}

// Classify returns the category for description, or nil when no category
// could be determined. The candidate set is the user's categories plus the
// global defaults for the entry's direction.
func (c *Classifier) Classify(ctx context.Context, description, userID string, direction domain.Direction) *domain.Category {
	ctx, span := classifierTracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	candidates := c.availableCategories(ctx, userID, direction)
	if len(candidates) == 0 {
		c.metrics.IncrClassification("none")
		return nil
	}

	if answer, ok := c.semantic.Lookup(ctx, description); ok {
		span.SetAttributes(attribute.String("source", "cache"))
		cat := matchCategory(candidates, answer)
		if cat == nil {
			// A cached answer naming an unknown category still short-circuits:
			// the model gave this answer before and would again.
			c.logger.Debug("cached answer matches no candidate",
				zap.String("answer", answer),
			)
			c.metrics.IncrClassification("none")
			return nil
		}
		c.metrics.IncrClassification("cache")
		return cat
	}

	prompt := buildCategoryPrompt(description, candidates)
	raw, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("classification model call failed", zap.Error(err))
		c.metrics.IncrExternalError("genai")
		c.metrics.IncrClassification("none")
		return nil
	}
	answer := strings.TrimSpace(raw)
	span.SetAttributes(attribute.String("source", "model"))

	// Stored regardless of whether the answer matches a candidate, so a
	// similar description later reuses this answer instead of re-asking.
	if err := c.semantic.Store(ctx, description, answer); err != nil {
		c.logger.Warn("failed to cache classification answer", zap.Error(err))
	}

	cat := matchCategory(candidates, answer)
	if cat == nil {
		c.logger.Debug("model answer matches no candidate",
			zap.String("description", description),
			zap.String("answer", answer),
		)
		c.metrics.IncrClassification("none")
		return nil
	}
	c.metrics.IncrClassification("model")
	return cat
}

// availableCategories returns the candidate set, served from a short TTL
// cache keyed by user and direction. Store failures degrade to an empty set.
func (c *Classifier) availableCategories(ctx context.Context, userID string, direction domain.Direction) []domain.Category {
	key := userID + ":" + string(direction)
	if cats, ok := c.candCache.Get(key); ok {
		c.metrics.IncrCacheHit("categories")
		return cats
	}
	c.metrics.IncrCacheMiss("categories")

	cats, err := c.categories.ListAvailable(ctx, userID, direction)
	if err != nil {
		c.logger.Warn("failed to load candidate categories", zap.Error(err))
		return nil
	}
	c.candCache.Set(key, cats)
	return cats
}

// matchCategory finds the candidate whose name equals answer ignoring case
// and surrounding whitespace.
func matchCategory(candidates []domain.Category, answer string) *domain.Category {
	answer = strings.TrimSpace(answer)
	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, answer) {
			return &candidates[i]
		}
	}
	return nil
}

func buildCategoryPrompt(description string, candidates []domain.Category) string {
	names := make([]string, len(candidates))
	for i, cat := range candidates {
		names[i] = cat.Name
	}
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Assign the bank transaction below to one of the available categories.\n")
	b.WriteString("Answer only with the exact name of one of the listed categories, nothing else.\n\n")
	fmt.Fprintf(&b, "Transaction description: %q\n\n", description)
	fmt.Fprintf(&b, "Available categories: [%s]\n\n", strings.Join(names, ", "))
	b.WriteString("Category:")
	return b.String()
}
