// Package client provides HTTP clients for the external services the
// backend consumes: the bank-aggregation integrator and the GenAI sidecar.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
	"github.com/nexabudget/nexabudget-go/internal/port"
)

var tracer = otel.Tracer("client")

// BankFeedClient calls the bank-aggregation integrator (a thin proxy in
// front of the GoCardless bank-account-data API).
type BankFeedClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bankCache  port.Cache[[]domain.FeedBank]
}

// NewBankFeedClient creates a new BankFeedClient. bankCache may be nil to
// disable caching of the per-country institution list.
func NewBankFeedClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, bankCache port.Cache[[]domain.FeedBank]) *BankFeedClient {
	return &BankFeedClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		bankCache:  bankCache,
	}
}

// post sends a JSON request to an integrator path and decodes the response
// envelope into out, wrapped in circuit breaker + retry.
func (c *BankFeedClient) post(ctx context.Context, path string, req, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s%s", c.baseURL, path)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("integrator %s returned status %d", path, resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(out)
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "integrator", Err: err}
	}
	return nil
}

// GetBanks lists the institutions available for linking in a country.
// Results are cached: the list changes rarely and the integrator rate-limits.
func (c *BankFeedClient) GetBanks(ctx context.Context, country string) ([]domain.FeedBank, error) {
	ctx, span := tracer.Start(ctx, "BankFeed.GetBanks")
	defer span.End()
	span.SetAttributes(attribute.String("country", country))

	if c.bankCache != nil {
		if banks, ok := c.bankCache.Get(country); ok {
			return banks, nil
		}
	}

	var out struct {
		Data []domain.FeedBank `json:"data"`
	}
	req := map[string]string{"country": country}
	if err := c.post(ctx, "/get-banks", req, &out); err != nil {
		return nil, err
	}

	if c.bankCache != nil {
		c.bankCache.Set(country, out.Data)
	}
	return out.Data, nil
}

// CreateWebToken starts the consent flow for an institution and returns the
// link the frontend redirects the user to.
func (c *BankFeedClient) CreateWebToken(ctx context.Context, institutionID, localAccountID string) (*domain.FeedWebToken, error) {
	ctx, span := tracer.Start(ctx, "BankFeed.CreateWebToken")
	defer span.End()
	span.SetAttributes(attribute.String("institution.id", institutionID))

	var out struct {
		Data *domain.FeedWebToken `json:"data"`
	}
	req := map[string]string{
		"institution_id":   institutionID,
		"local_account_id": localAccountID,
	}
	if err := c.post(ctx, "/create-web-token", req, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, &domain.ErrExternalService{Service: "integrator", Err: fmt.Errorf("empty web token response")}
	}
	return out.Data, nil
}

// GetBankAccounts lists the external accounts reachable under a requisition.
func (c *BankFeedClient) GetBankAccounts(ctx context.Context, requisitionID string) ([]domain.FeedBankAccount, error) {
	ctx, span := tracer.Start(ctx, "BankFeed.GetBankAccounts")
	defer span.End()

	var out struct {
		Data struct {
			Accounts []domain.FeedBankAccount `json:"accounts"`
		} `json:"data"`
	}
	req := map[string]string{"requisition_id": requisitionID}
	if err := c.post(ctx, "/get-accounts", req, &out); err != nil {
		return nil, err
	}
	return out.Data.Accounts, nil
}

// GetTransactions fetches the booked transaction records for one linked
// external account.
func (c *BankFeedClient) GetTransactions(ctx context.Context, requisitionID, externalAccountID string) ([]domain.FeedTransaction, error) {
	ctx, span := tracer.Start(ctx, "BankFeed.GetTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("external_account.id", externalAccountID))

	var out struct {
		Data struct {
			Transactions struct {
				Booked  []domain.FeedTransaction `json:"booked"`
				Pending []domain.FeedTransaction `json:"pending"`
			} `json:"transactions"`
		} `json:"data"`
	}
	req := map[string]string{
		"requisition_id": requisitionID,
		"account_id":     externalAccountID,
	}
	if err := c.post(ctx, "/transactions", req, &out); err != nil {
		return nil, err
	}

	// Only booked records carry a stable transaction id; pending ones are
	// re-delivered as booked later and would defeat the idempotency key.
	return out.Data.Transactions.Booked, nil
}
