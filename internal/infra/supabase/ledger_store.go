package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
)

// supabaseEntry maps the ledger_entries table columns.
type supabaseEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountID   string          `json:"account_id"`
	CategoryID  *string         `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   string          `json:"direction"`
	Description string          `json:"description"`
	Date        string          `json:"date"` // 2006-01-02
	Note        *string         `json:"note"`
	ExternalID  *string         `json:"external_id"`
	TransferID  *string         `json:"transfer_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r *supabaseEntry) toDomain() domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:          r.ID,
		UserID:      r.UserID,
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Direction:   domain.Direction(r.Direction),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
	e.Date, _ = time.Parse("2006-01-02", r.Date)
	if r.CategoryID != nil {
		e.CategoryID = *r.CategoryID
	}
	if r.Note != nil {
		e.Note = *r.Note
	}
	if r.ExternalID != nil {
		e.ExternalID = *r.ExternalID
	}
	if r.TransferID != nil {
		e.TransferID = *r.TransferID
	}
	return e
}

func (c *Client) queryEntries(ctx context.Context, path string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				entries = []domain.LedgerEntry{}
				return nil
			}

			var rows []supabaseEntry
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode ledger entries: %w", err)
			}
			entries = make([]domain.LedgerEntry, 0, len(rows))
			for _, r := range rows {
				entries = append(entries, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return entries, nil
}

// GetEntryForUser fetches one ledger entry scoped to its owner.
func (c *Client) GetEntryForUser(ctx context.Context, entryID, userID string) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetEntryForUser")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?id=eq.%s&user_id=eq.%s&limit=1",
		url.QueryEscape(entryID), url.QueryEscape(userID))
	entries, err := c.queryEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &domain.ErrNotFound{Resource: "ledger entry", ID: entryID}
	}
	return &entries[0], nil
}

// ListEntriesByUser lists all entries owned by a user, newest first.
func (c *Client) ListEntriesByUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEntriesByUser")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?user_id=eq.%s&order=date.desc", url.QueryEscape(userID))
	return c.queryEntries(ctx, path)
}

// ListEntriesByAccount lists all entries on one account, newest first.
func (c *Client) ListEntriesByAccount(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEntriesByAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	path := fmt.Sprintf("ledger_entries?account_id=eq.%s&order=date.desc", url.QueryEscape(accountID))
	return c.queryEntries(ctx, path)
}

// ListEntriesByTransfer lists the paired entries sharing one transfer id.
func (c *Client) ListEntriesByTransfer(ctx context.Context, transferID, userID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEntriesByTransfer")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?transfer_id=eq.%s&user_id=eq.%s",
		url.QueryEscape(transferID), url.QueryEscape(userID))
	return c.queryEntries(ctx, path)
}

// FindByExternalID looks up an imported entry by its provider id on one
// account. Returns (nil, nil) when no entry carries the id.
func (c *Client) FindByExternalID(ctx context.Context, accountID, externalID string) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindByExternalID")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?account_id=eq.%s&external_id=eq.%s&limit=1",
		url.QueryEscape(accountID), url.QueryEscape(externalID))
	entries, err := c.queryEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// CreateEntry inserts a new ledger entry and returns the stored row.
func (c *Client) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateEntry")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", entry.AccountID))

	data := map[string]any{
		"id":          entry.ID,
		"user_id":     entry.UserID,
		"account_id":  entry.AccountID,
		"amount":      entry.Amount,
		"direction":   string(entry.Direction),
		"description": entry.Description,
		"date":        entry.Date.Format("2006-01-02"),
	}
	if entry.CategoryID != "" {
		data["category_id"] = entry.CategoryID
	}
	if entry.Note != "" {
		data["note"] = entry.Note
	}
	if entry.ExternalID != "" {
		data["external_id"] = entry.ExternalID
	}
	if entry.TransferID != "" {
		data["transfer_id"] = entry.TransferID
	}

	body, err := c.doPost(ctx, "ledger_entries", data)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}

	var rows []supabaseEntry
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return entry, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}

// UpdateEntry patches the given columns on one entry.
func (c *Client) UpdateEntry(ctx context.Context, entryID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateEntry")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?id=eq.%s", url.QueryEscape(entryID))
	if err := c.doPatch(ctx, path, updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return nil
}

// DeleteEntry removes one entry.
func (c *Client) DeleteEntry(ctx context.Context, entryID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEntry")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?id=eq.%s", url.QueryEscape(entryID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return nil
}

// DeleteEntriesByAccount removes all entries on one account (account
// deletion path).
func (c *Client) DeleteEntriesByAccount(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEntriesByAccount")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?account_id=eq.%s", url.QueryEscape(accountID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return nil
}

// SumByDirection totals the unsigned amounts for one direction on an
// account. Uses a PostgREST aggregate select.
func (c *Client) SumByDirection(ctx context.Context, accountID string, direction domain.Direction) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SumByDirection")
	defer span.End()

	var sum decimal.Decimal

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("ledger_entries?account_id=eq.%s&direction=eq.%s&select=total:amount.sum()",
				url.QueryEscape(accountID), url.QueryEscape(string(direction)))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				sum = decimal.Zero
				return nil
			}

			var rows []struct {
				Total *decimal.Decimal `json:"total"`
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode sum: %w", err)
			}
			if len(rows) == 0 || rows[0].Total == nil {
				sum = decimal.Zero
				return nil
			}
			sum = *rows[0].Total
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return sum, nil
}
