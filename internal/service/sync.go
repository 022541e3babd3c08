package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/observability"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var syncTracer = otel.Tracer("service/sync")

// Syncer orchestrates background bank syncs. Enqueue validates on the
// request path and returns immediately; the run itself happens on a bounded
// worker pool and never surfaces errors to the caller.
type Syncer struct {
	accounts    port.AccountStore
	feed        port.BankFeed
	importer    *Importer
	reconciler  *Reconciler
	sem         *semaphore.Weighted
	wg          sync.WaitGroup
	cooldown    time.Duration
	callTimeout time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
}

func NewSyncer(
	accounts port.AccountStore,
	feed port.BankFeed,
	importer *Importer,
	reconciler *Reconciler,
	workers int,
	cooldown time.Duration,
	callTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Syncer {
	if workers < 1 {
		workers = 1
	}
	return &Syncer{
		accounts:    accounts,
		feed:        feed,
		importer:    importer,
		reconciler:  reconciler,
		sem:         semaphore.NewWeighted(int64(workers)),
		cooldown:    cooldown,
		callTimeout: callTimeout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Enqueue validates that the account exists, belongs to the user and is
// linked to an external bank account, then schedules the sync run and
// returns. expectedBalance, when non-nil, is reconciled after the import.
func (s *Syncer) Enqueue(ctx context.Context, accountID, userID string, expectedBalance *decimal.Decimal) error {
	_, span := syncTracer.Start(ctx, "Syncer.Enqueue")
	defer span.End()
	span.SetAttributes(attribute.String("account_id", accountID))

	account, err := s.accounts.GetAccountForUser(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !account.Linked() {
		return &domain.ErrValidation{Field: "account", Message: "account is not linked to an external bank account"}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Detached from the request context: the run outlives the 202.
		runCtx := context.Background()
		if err := s.sem.Acquire(runCtx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		s.run(runCtx, accountID, userID, expectedBalance)
	}()
	return nil
}

// Wait blocks until every in-flight sync run has finished. Called during
// graceful shutdown.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) run(ctx context.Context, accountID, userID string, expected *decimal.Decimal) {
	ctx, span := syncTracer.Start(ctx, "Syncer.run")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("sync_run", time.Since(start))
	}()

	logger := s.logger.With(zap.String("account_id", accountID))

	account, err := s.getAccount(ctx, accountID, userID)
	if err != nil {
		logger.Error("sync: failed to load account", zap.Error(err))
		s.metrics.IncrSyncRun("failed")
		return
	}

	// Persisted single-flight guard. This is a read-then-write, not a
	// compare-and-swap: two runs that both read the flag before either
	// write lands will both proceed.
	if account.IsSynchronizing {
		logger.Info("sync already in progress, skipping")
		s.metrics.IncrSyncRun("skipped")
		return
	}
	if account.LastExternalSync != nil && time.Since(*account.LastExternalSync) < s.cooldown {
		logger.Info("account synced recently, skipping",
			zap.Time("last_external_sync", *account.LastExternalSync),
		)
		s.metrics.IncrSyncRun("skipped")
		return
	}

	if err := s.setSynchronizing(ctx, accountID, true); err != nil {
		logger.Error("sync: failed to set sync flag", zap.Error(err))
		s.metrics.IncrSyncRun("failed")
		return
	}
	defer func() {
		// Background context so the flag clears even if ctx is gone.
		if err := s.setSynchronizing(context.Background(), accountID, false); err != nil {
			logger.Error("sync: failed to clear sync flag", zap.Error(err))
		}
	}()

	var since *time.Time
	if account.LastExternalSync != nil {
		y, m, d := account.LastExternalSync.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		since = &day
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	records, err := s.feed.GetTransactions(fetchCtx, account.RequisitionID, account.ExternalAccountID)
	cancel()
	if err != nil {
		logger.Error("sync: feed fetch failed", zap.Error(err))
		s.metrics.IncrExternalError("integrator")
		s.metrics.IncrSyncRun("failed")
		return
	}
	logger.Info("fetched feed records", zap.Int("count", len(records)))

	stats := s.importer.Import(ctx, records, userID, account, since)
	logger.Info("import pass finished",
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	if expected != nil {
		if err := s.reconciler.Reconcile(ctx, account, *expected); err != nil {
			logger.Error("sync: reconciliation failed", zap.Error(err))
			s.metrics.IncrSyncRun("failed")
			return
		}
	}

	now := time.Now().UTC()
	if err := s.accounts.UpdateAccount(ctx, accountID, map[string]any{
		"last_external_sync": now.Format(time.RFC3339),
	}); err != nil {
		logger.Error("sync: failed to record sync time", zap.Error(err))
		s.metrics.IncrSyncRun("failed")
		return
	}

	s.metrics.IncrSyncRun("completed")
	logger.Info("sync completed", zap.Duration("took", time.Since(start)))
}

func (s *Syncer) getAccount(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.accounts.GetAccountForUser(cctx, accountID, userID)
}

func (s *Syncer) setSynchronizing(ctx context.Context, accountID string, value bool) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.accounts.UpdateAccount(cctx, accountID, map[string]any{
		"is_synchronizing": value,
	})
}
