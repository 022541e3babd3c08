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

var accountsTracer = otel.Tracer("service/accounts")

// Accounts implements account management. Balances are always derived from
// the ledger, never stored on the account row.
type Accounts struct {
	store      port.AccountStore
	ledger     port.LedgerStore
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewAccounts(store port.AccountStore, ledger port.LedgerStore, reconciler *Reconciler, logger *zap.Logger) *Accounts {
	return &Accounts{store: store, ledger: ledger, reconciler: reconciler, logger: logger}
}

// Create opens a new account. When req.StarterBalance is set and non-zero,
// an opening ledger entry is written so the derived balance starts there.
func (s *Accounts) Create(ctx context.Context, userID string, req *domain.AccountRequest) (*domain.AccountResponse, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.Create")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.Currency == "" {
		return nil, &domain.ErrValidation{Field: "currency", Message: "currency is required"}
	}

	account := &domain.Account{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     req.Name,
		Type:     req.Type,
		Currency: req.Currency,
	}
	created, err := s.store.CreateAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	if req.StarterBalance != nil && !req.StarterBalance.IsZero() {
		direction := domain.DirectionIn
		if req.StarterBalance.IsNegative() {
			direction = domain.DirectionOut
		}
		now := time.Now().UTC()
		opening := &domain.LedgerEntry{
			ID:          uuid.NewString(),
			UserID:      userID,
			AccountID:   created.ID,
			Amount:      req.StarterBalance.Abs(),
			Direction:   direction,
			Description: "Starting balance",
			Date:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		}
		if _, err := s.ledger.CreateEntry(ctx, opening); err != nil {
			return nil, err
		}
		balance = *req.StarterBalance
	}

	s.logger.Info("account created",
		zap.String("account_id", created.ID),
		zap.String("user_id", userID),
	)
	resp := toAccountResponse(created, balance)
	return &resp, nil
}

// Get returns one account with its derived balance.
func (s *Accounts) Get(ctx context.Context, accountID, userID string) (*domain.AccountResponse, error) {
	account, err := s.store.GetAccountForUser(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.reconciler.Balance(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	resp := toAccountResponse(account, balance)
	return &resp, nil
}

// List returns all of the user's accounts with derived balances.
func (s *Accounts) List(ctx context.Context, userID string) ([]domain.AccountResponse, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.List")
	defer span.End()

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AccountResponse, 0, len(accounts))
	for i := range accounts {
		balance, err := s.reconciler.Balance(ctx, accounts[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, toAccountResponse(&accounts[i], balance))
	}
	return out, nil
}

// TotalBalance sums the derived balances of the user's accounts in one
// currency.
func (s *Accounts) TotalBalance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	accounts, err := s.store.ListAccountsByCurrency(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range accounts {
		balance, err := s.reconciler.Balance(ctx, accounts[i].ID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(balance)
	}
	return total, nil
}

// Update renames or re-types an account.
func (s *Accounts) Update(ctx context.Context, accountID, userID string, req *domain.AccountRequest) error {
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return err
	}
	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}
	if len(updates) == 0 {
		return &domain.ErrValidation{Field: "account", Message: "nothing to update"}
	}
	return s.store.UpdateAccount(ctx, accountID, updates)
}

// Link connects an account to an external bank account so it can be synced.
func (s *Accounts) Link(ctx context.Context, accountID, userID string, req *domain.LinkRequest) error {
	if req.RequisitionID == "" || req.ExternalAccountID == "" {
		return &domain.ErrValidation{Field: "link", Message: "requisition_id and external_account_id are required"}
	}
	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return err
	}
	s.logger.Info("linking account to external bank account",
		zap.String("account_id", accountID),
		zap.String("requisition_id", req.RequisitionID),
	)
	return s.store.UpdateAccount(ctx, accountID, map[string]any{
		"requisition_id":      req.RequisitionID,
		"external_account_id": req.ExternalAccountID,
	})
}

// Delete removes an account and every ledger entry on it.
func (s *Accounts) Delete(ctx context.Context, accountID, userID string) error {
	ctx, span := accountsTracer.Start(ctx, "Accounts.Delete")
	defer span.End()

	if _, err := s.store.GetAccountForUser(ctx, accountID, userID); err != nil {
		return err
	}
	if err := s.ledger.DeleteEntriesByAccount(ctx, accountID); err != nil {
		return err
	}
	return s.store.DeleteAccount(ctx, accountID)
}

// SyncStatus reports the persisted sync state of an account.
func (s *Accounts) SyncStatus(ctx context.Context, accountID, userID string) (*domain.SyncStatus, error) {
	account, err := s.store.GetAccountForUser(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	return &domain.SyncStatus{
		AccountID:        account.ID,
		IsSynchronizing:  account.IsSynchronizing,
		LastExternalSync: account.LastExternalSync,
	}, nil
}

func toAccountResponse(a *domain.Account, balance decimal.Decimal) domain.AccountResponse {
	return domain.AccountResponse{
		ID:               a.ID,
		Name:             a.Name,
		Type:             a.Type,
		Currency:         a.Currency,
		ActualBalance:    balance,
		IsLinkedExternal: a.Linked(),
		IsSynchronizing:  a.IsSynchronizing,
		LastExternalSync: a.LastExternalSync,
	}
}
