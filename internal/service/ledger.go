package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Ledger implements manual entry management, transfers and the
// re-categorization correction path.
type Ledger struct {
	entries    port.LedgerStore
	accounts   port.AccountStore
	categories port.CategoryStore
	semantic   *SemanticCache
	logger     *zap.Logger
}

func NewLedger(
	entries port.LedgerStore,
	accounts port.AccountStore,
	categories port.CategoryStore,
	semantic *SemanticCache,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		entries:    entries,
		accounts:   accounts,
		categories: categories,
		semantic:   semantic,
		logger:     logger,
	}
}

// CreateEntry adds a manual ledger entry on one of the user's accounts.
func (s *Ledger) CreateEntry(ctx context.Context, userID string, req *domain.EntryRequest) (*domain.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.CreateEntry")
	defer span.End()

	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.Direction != domain.DirectionIn && req.Direction != domain.DirectionOut {
		return nil, &domain.ErrValidation{Field: "direction", Message: "direction must be IN or OUT"}
	}
	date, err := time.Parse(feedDateLayout, req.Date)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "date must use the 2006-01-02 format"}
	}
	if _, err := s.accounts.GetAccountForUser(ctx, req.AccountID, userID); err != nil {
		return nil, err
	}
	if req.CategoryID != "" {
		if _, err := s.categories.GetCategoryForUser(ctx, req.CategoryID, userID); err != nil {
			return nil, err
		}
	}

	return s.entries.CreateEntry(ctx, &domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Description: req.Description,
		Date:        date,
		Note:        req.Note,
	})
}

// ListByUser returns every entry belonging to the user.
func (s *Ledger) ListByUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	return s.entries.ListEntriesByUser(ctx, userID)
}

// ListByAccount returns the entries of one account after an ownership check.
func (s *Ledger) ListByAccount(ctx context.Context, accountID, userID string) ([]domain.LedgerEntry, error) {
	if _, err := s.accounts.GetAccountForUser(ctx, accountID, userID); err != nil {
		return nil, err
	}
	return s.entries.ListEntriesByAccount(ctx, accountID)
}

// CreateTransfer writes a paired OUT/IN entry sharing a transfer id, moving
// amount from one of the user's accounts to another.
func (s *Ledger) CreateTransfer(ctx context.Context, userID string, req *domain.TransferRequest) ([]domain.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.CreateTransfer")
	defer span.End()

	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, &domain.ErrValidation{Field: "to_account_id", Message: "cannot transfer to the same account"}
	}
	date, err := time.Parse(feedDateLayout, req.Date)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "date must use the 2006-01-02 format"}
	}

	from, err := s.accounts.GetAccountForUser(ctx, req.FromAccountID, userID)
	if err != nil {
		return nil, err
	}
	to, err := s.accounts.GetAccountForUser(ctx, req.ToAccountID, userID)
	if err != nil {
		return nil, err
	}

	transferID := uuid.NewString()
	description := req.Description
	if description == "" {
		description = "Transfer"
	}

	out := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   from.ID,
		Amount:      req.Amount,
		Direction:   domain.DirectionOut,
		Description: description + " to " + to.Name,
		Date:        date,
		TransferID:  transferID,
	}
	in := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		AccountID:   to.ID,
		Amount:      req.Amount,
		Direction:   domain.DirectionIn,
		Description: description + " from " + from.Name,
		Date:        date,
		TransferID:  transferID,
	}

	createdOut, err := s.entries.CreateEntry(ctx, out)
	if err != nil {
		return nil, err
	}
	createdIn, err := s.entries.CreateEntry(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer created",
		zap.String("transfer_id", transferID),
		zap.String("from", from.ID),
		zap.String("to", to.ID),
		zap.String("amount", req.Amount.String()),
	)
	return []domain.LedgerEntry{*createdOut, *createdIn}, nil
}

// Recategorize moves an entry to another category and re-stores the
// semantic cache row for the entry's description so future imports of
// similar descriptions pick up the correction.
func (s *Ledger) Recategorize(ctx context.Context, entryID, userID, categoryID string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Recategorize")
	defer span.End()

	entry, err := s.entries.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		return err
	}
	category, err := s.categories.GetCategoryForUser(ctx, categoryID, userID)
	if err != nil {
		return err
	}
	if category.Direction != entry.Direction {
		return &domain.ErrValidation{Field: "category_id", Message: "category direction does not match the entry"}
	}

	if err := s.entries.UpdateEntry(ctx, entryID, map[string]any{"category_id": categoryID}); err != nil {
		return err
	}

	// Cache correction is best-effort: the entry update already stands.
	if entry.ExternalID != "" && entry.Description != "" {
		if err := s.semantic.Update(ctx, entry.Description, category.Name); err != nil {
			s.logger.Warn("failed to update semantic cache after recategorization",
				zap.String("entry_id", entryID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// DeleteEntry removes an entry. Deleting one leg of a transfer removes both
// legs, keeping the pair consistent.
func (s *Ledger) DeleteEntry(ctx context.Context, entryID, userID string) error {
	entry, err := s.entries.GetEntryForUser(ctx, entryID, userID)
	if err != nil {
		return err
	}
	if entry.TransferID != "" {
		legs, err := s.entries.ListEntriesByTransfer(ctx, entry.TransferID, userID)
		if err != nil {
			return err
		}
		for i := range legs {
			if err := s.entries.DeleteEntry(ctx, legs[i].ID); err != nil {
				return err
			}
		}
		return nil
	}
	return s.entries.DeleteEntry(ctx, entryID)
}
