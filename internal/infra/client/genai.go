package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/infra/resilience"
)

// GenAIClient calls the GenAI sidecar exposing the embedding model and the
// completion model behind one HTTP surface. Implements port.Embedder and
// port.Completer.
type GenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewGenAIClient creates a new GenAIClient.
func NewGenAIClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *GenAIClient {
	return &GenAIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
	}
}

func (c *GenAIClient) post(ctx context.Context, path string, req, out any) error {
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
			if c.apiKey != "" {
				httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("genai %s returned status %d", path, resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(out)
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "genai", Err: err}
	}
	return nil
}

// Embed converts text into a fixed-length numeric vector. The vector length
// is defined by the embedding model, not by this client.
func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := tracer.Start(ctx, "GenAI.Embed")
	defer span.End()

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	req := map[string]any{"text": text}
	if err := c.post(ctx, "/v1/embeddings", req, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, &domain.ErrExternalService{Service: "genai", Err: fmt.Errorf("no embedding returned")}
	}
	return out.Embedding, nil
}

// Complete invokes the language model with a free-text prompt. Generation
// constraints are fixed for terse single-label answers: low randomness,
// short output.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "GenAI.Complete")
	defer span.End()

	var out struct {
		Text string `json:"text"`
	}
	req := map[string]any{
		"prompt":      prompt,
		"temperature": 0.1,
		"top_k":       1,
		"max_tokens":  50,
	}
	if err := c.post(ctx, "/v1/completions", req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
