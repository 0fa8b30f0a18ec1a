package walletpro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider talks to the wallet provider over its JSON API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTP constructs a wallet provider client against the given base URL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("wallet provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet provider: status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func withdrawBody(req WithdrawRequest) map[string]any {
	return map[string]any{
		"wallet_id":    req.WalletID,
		"user_id":      req.UserID,
		"business_uid": req.BusinessUID,
		"address":      req.Address,
		"amount":       req.Amount,
	}
}

// QuoteWithdraw validates a withdrawal intent with the provider.
func (p *HTTPProvider) QuoteWithdraw(ctx context.Context, req WithdrawRequest) (Quote, error) {
	var out struct {
		AmountValid           bool  `json:"amount_valid"`
		AddressValid          bool  `json:"address_valid"`
		BusinessUIDValid      bool  `json:"business_uid_valid"`
		BusinessUIDDuplicated bool  `json:"business_uid_duplicated"`
		GrossAmount           int64 `json:"gross_amount"`
	}
	if err := p.post(ctx, "/v1/withdraw/quote", withdrawBody(req), &out); err != nil {
		return Quote{}, err
	}
	return Quote{
		AmountValid:           out.AmountValid,
		AddressValid:          out.AddressValid,
		BusinessUIDValid:      out.BusinessUIDValid,
		BusinessUIDDuplicated: out.BusinessUIDDuplicated,
		GrossAmount:           out.GrossAmount,
	}, nil
}

// ScheduleWithdraw submits the on-chain withdrawal.
func (p *HTTPProvider) ScheduleWithdraw(ctx context.Context, req WithdrawRequest) error {
	return p.post(ctx, "/v1/withdraw/schedule", withdrawBody(req), nil)
}

// Deposits lists a page of deposits strictly after the cutoff.
func (p *HTTPProvider) Deposits(ctx context.Context, walletID string, after time.Time, page int) ([]Deposit, error) {
	var out struct {
		Deposits []struct {
			ID                string `json:"id"`
			UserID            string `json:"user_id"`
			NetAmount         int64  `json:"net_amount"`
			Confirmed         bool   `json:"confirmed"`
			ConfirmationsLeft int    `json:"confirmations_left"`
			Status            string `json:"status"`
			Error             string `json:"error"`
			SeenAt            int64  `json:"seen_at"`
		} `json:"deposits"`
	}
	err := p.post(ctx, "/v1/deposits", map[string]any{
		"wallet_id": walletID,
		"after":     after.Unix(),
		"page":      page,
	}, &out)
	if err != nil {
		return nil, err
	}

	deposits := make([]Deposit, 0, len(out.Deposits))
	for _, d := range out.Deposits {
		deposits = append(deposits, Deposit{
			ID:                d.ID,
			UserID:            d.UserID,
			NetAmount:         d.NetAmount,
			Confirmed:         d.Confirmed,
			ConfirmationsLeft: d.ConfirmationsLeft,
			Status:            d.Status,
			Error:             d.Error,
			SeenAt:            time.Unix(d.SeenAt, 0).UTC(),
		})
	}
	return deposits, nil
}
