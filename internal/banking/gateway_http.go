package banking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPGateway talks to a payment gateway over its JSON API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPGateway constructs a gateway connector against the given base URL.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateTransaction opens a provider-side transaction.
func (g *HTTPGateway) CreateTransaction(ctx context.Context, batchID string, amount int64) (string, error) {
	var out struct {
		TransactionID string `json:"transaction_id"`
	}
	err := g.post(ctx, "/v1/transactions", map[string]any{
		"batch_id": batchID,
		"amount":   amount,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// VerifyTransaction fetches the settled amount, reference and card used.
func (g *HTTPGateway) VerifyTransaction(ctx context.Context, providerTxID string) (VerifyResult, error) {
	var out struct {
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
		Card      string `json:"card"`
	}
	err := g.post(ctx, "/v1/transactions/verify", map[string]any{
		"transaction_id": providerTxID,
	}, &out)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Amount: out.Amount, Reference: out.Reference, Card: out.Card}, nil
}
