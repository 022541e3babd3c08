package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var importerTracer = otel.Tracer("service/importer")

// feedDateLayout is the civil date format the provider uses for value dates.
const feedDateLayout = "2006-01-02"

// ImportStats summarizes one import pass over a batch of feed records.
type ImportStats struct {
	Imported int
	Skipped  int
	Failed   int
}

// Importer merges provider feed records into the local ledger. Each record
// lands at most once (external-id idempotency) and a failure on one record
// never affects the others.
type Importer struct {
	ledger     port.LedgerStore
	classifier *Classifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewImporter(ledger port.LedgerStore, classifier *Classifier, metrics *observability.Metrics, logger *zap.Logger) *Importer {
	return &Importer{
		ledger:     ledger,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Import processes records sequentially. Records dated before since are
// skipped when since is non-nil.
func (imp *Importer) Import(ctx context.Context, records []domain.FeedTransaction, userID string, account *domain.Account, since *time.Time) ImportStats {
	ctx, span := importerTracer.Start(ctx, "Importer.Import")
	defer span.End()

	var stats ImportStats
	for i := range records {
		created, err := imp.importOne(ctx, &records[i], userID, account, since)
		switch {
		case err != nil:
			stats.Failed++
			imp.logger.Warn("failed to import feed record",
				zap.String("account_id", account.ID),
				zap.String("external_id", records[i].ExternalID),
				zap.Error(err),
			)
		case created:
			stats.Imported++
		default:
			stats.Skipped++
		}
	}

	imp.metrics.AddEntriesImported(stats.Imported)
	return stats
}

func (imp *Importer) importOne(ctx context.Context, rec *domain.FeedTransaction, userID string, account *domain.Account, since *time.Time) (bool, error) {
	existing, err := imp.ledger.FindByExternalID(ctx, account.ID, rec.ExternalID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		imp.logger.Debug("feed record already in ledger",
			zap.String("external_id", rec.ExternalID),
		)
		return false, nil
	}

	date, err := time.Parse(feedDateLayout, rec.ValueDate)
	if err != nil {
		return false, fmt.Errorf("parse value date %q: %w", rec.ValueDate, err)
	}
	if since != nil && date.Before(*since) {
		return false, nil
	}

	raw, err := decimal.NewFromString(rec.Amount.Amount)
	if err != nil {
		return false, fmt.Errorf("parse amount %q: %w", rec.Amount.Amount, err)
	}
	direction := domain.DirectionIn
	if raw.IsNegative() {
		direction = domain.DirectionOut
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   account.ID,
		Amount:      raw.Abs(),
		Direction:   direction,
		Description: rec.PayeeName,
		Date:        date,
		ExternalID:  rec.ExternalID,
	}

	if cat := imp.classifier.Classify(ctx, rec.PayeeName, userID, direction); cat != nil {
		entry.CategoryID = cat.ID
	}

	if _, err := imp.ledger.CreateEntry(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}
