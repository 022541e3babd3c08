package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var reconcilerTracer = otel.Tracer("service/reconciler")

// alignmentDescription marks the compensating entries the reconciler writes.
const alignmentDescription = "Account alignment"

// Reconciler keeps the ledger-derived balance in line with an externally
// reported one by writing a single compensating entry when they differ.
type Reconciler struct {
	ledger port.LedgerStore
	logger *zap.Logger
}

func NewReconciler(ledger port.LedgerStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{ledger: ledger, logger: logger}
}

// Balance returns the derived balance for an account: the sum of all IN
// amounts minus the sum of all OUT amounts.
func (r *Reconciler) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	in, err := r.ledger.SumByDirection(ctx, accountID, domain.DirectionIn)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := r.ledger.SumByDirection(ctx, accountID, domain.DirectionOut)
	if err != nil {
		return decimal.Zero, err
	}
	return in.Sub(out), nil
}

// Reconcile compares the derived balance against expected and, when they
// differ, writes one entry dated today that moves the ledger onto expected.
// The comparison is exact, not tolerance-based.
func (r *Reconciler) Reconcile(ctx context.Context, account *domain.Account, expected decimal.Decimal) error {
	ctx, span := reconcilerTracer.Start(ctx, "Reconciler.Reconcile")
	defer span.End()

	balance, err := r.Balance(ctx, account.ID)
	if err != nil {
		return err
	}
	if balance.Equal(expected) {
		return nil
	}

	diff := expected.Sub(balance)
	direction := domain.DirectionIn
	if diff.IsNegative() {
		direction = domain.DirectionOut
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      account.UserID,
		AccountID:   account.ID,
		Amount:      diff.Abs(),
		Direction:   direction,
		Description: alignmentDescription,
		Date:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if _, err := r.ledger.CreateEntry(ctx, entry); err != nil {
		return err
	}

	r.logger.Info("wrote balance alignment entry",
		zap.String("account_id", account.ID),
		zap.String("derived", balance.String()),
		zap.String("expected", expected.String()),
		zap.String("adjustment", diff.String()),
	)
	return nil
}
