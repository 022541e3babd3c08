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

// supabaseAccount maps the accounts table columns to our domain.
type supabaseAccount struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Currency          string     `json:"currency"`
	RequisitionID     *string    `json:"requisition_id"`
	ExternalAccountID *string    `json:"external_account_id"`
	LastExternalSync  *time.Time `json:"last_external_sync"`
	IsSynchronizing   bool       `json:"is_synchronizing"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (r *supabaseAccount) toDomain() domain.Account {
	a := domain.Account{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.Name,
		Type:             r.Type,
		Currency:         r.Currency,
		LastExternalSync: r.LastExternalSync,
		IsSynchronizing:  r.IsSynchronizing,
		CreatedAt:        r.CreatedAt,
	}
	if r.RequisitionID != nil {
		a.RequisitionID = *r.RequisitionID
	}
	if r.ExternalAccountID != nil {
		a.ExternalAccountID = *r.ExternalAccountID
	}
	return a
}

func (c *Client) queryAccounts(ctx context.Context, path string) ([]domain.Account, error) {
	var accounts []domain.Account

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				accounts = []domain.Account{}
				return nil
			}

			var rows []supabaseAccount
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode accounts: %w", err)
			}
			accounts = make([]domain.Account, 0, len(rows))
			for _, r := range rows {
				accounts = append(accounts, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	return accounts, nil
}

// GetAccount fetches one account by id.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	path := fmt.Sprintf("accounts?id=eq.%s&limit=1", url.QueryEscape(accountID))
	accounts, err := c.queryAccounts(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &accounts[0], nil
}

// GetAccountForUser fetches one account scoped to its owner.
func (c *Client) GetAccountForUser(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccountForUser")
	defer span.End()

	path := fmt.Sprintf("accounts?id=eq.%s&user_id=eq.%s&limit=1",
		url.QueryEscape(accountID), url.QueryEscape(userID))
	accounts, err := c.queryAccounts(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &accounts[0], nil
}

// ListAccounts lists all accounts owned by a user.
func (c *Client) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAccounts")
	defer span.End()

	path := fmt.Sprintf("accounts?user_id=eq.%s&order=created_at.asc", url.QueryEscape(userID))
	return c.queryAccounts(ctx, path)
}

// ListAccountsByCurrency lists a user's accounts in one currency.
func (c *Client) ListAccountsByCurrency(ctx context.Context, userID, currency string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAccountsByCurrency")
	defer span.End()

	path := fmt.Sprintf("accounts?user_id=eq.%s&currency=eq.%s",
		url.QueryEscape(userID), url.QueryEscape(currency))
	return c.queryAccounts(ctx, path)
}

// CreateAccount inserts a new account and returns the stored row.
func (c *Client) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAccount")
	defer span.End()

	data := map[string]any{
		"id":               account.ID,
		"user_id":          account.UserID,
		"name":             account.Name,
		"type":             account.Type,
		"currency":         account.Currency,
		"is_synchronizing": false,
	}

	body, err := c.doPost(ctx, "accounts", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	var rows []supabaseAccount
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return account, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}

// UpdateAccount patches the given columns on one account.
func (c *Client) UpdateAccount(ctx context.Context, accountID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	path := fmt.Sprintf("accounts?id=eq.%s", url.QueryEscape(accountID))
	if err := c.doPatch(ctx, path, updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	return nil
}

// DeleteAccount removes one account.
func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAccount")
	defer span.End()

	path := fmt.Sprintf("accounts?id=eq.%s", url.QueryEscape(accountID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	return nil
}
