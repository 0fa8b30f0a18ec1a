package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Response envelope codes returned by the ledger service.
const (
	codeOK               = "ok"
	codeRepeatUpdate     = "repeat_update"
	codeBalanceNotEnough = "balance_not_enough"
)

// HTTPClient talks to the ledger service over its JSON API. Every call carries
// a bounded timeout; a timeout means the outcome is unknown, not failed.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTP constructs a ledger client against the given base URL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type balancePayload struct {
	Available int64 `json:"available"`
	Freeze    int64 `json:"freeze"`
}

type recordPayload struct {
	UserID     string `json:"user_id"`
	Asset      string `json:"asset"`
	Business   string `json:"business"`
	BusinessID string `json:"business_id"`
	Change     int64  `json:"change"`
	Detail     string `json:"detail"`
	Time       int64  `json:"time"`
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out *envelope) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func mapCode(env envelope) error {
	switch env.Code {
	case codeOK:
		return nil
	case codeRepeatUpdate:
		return ErrRepeatUpdate
	case codeBalanceNotEnough:
		return ErrBalanceNotEnough
	default:
		return fmt.Errorf("ledger error %s: %s", env.Code, env.Message)
	}
}

// Query reads balances for the given assets.
func (c *HTTPClient) Query(ctx context.Context, userID string, assets ...string) (map[string]Balance, error) {
	var env envelope
	err := c.post(ctx, "/v1/balance/query", map[string]any{
		"user_id": userID,
		"assets":  assets,
	}, &env)
	if err != nil {
		return nil, err
	}
	if err := mapCode(env); err != nil {
		return nil, err
	}

	var data map[string]balancePayload
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode balances: %v", ErrUnavailable, err)
	}
	out := make(map[string]Balance, len(data))
	for asset, b := range data {
		out[asset] = Balance{Available: b.Available, Freeze: b.Freeze}
	}
	return out, nil
}

// Update applies a signed delta keyed by (asset, business, business id).
func (c *HTTPClient) Update(ctx context.Context, in UpdateInput) (Balance, error) {
	var env envelope
	err := c.post(ctx, "/v1/balance/update", map[string]any{
		"user_id":     in.UserID,
		"asset":       in.Asset,
		"business":    in.Business,
		"business_id": in.BusinessID,
		"change":      in.Change,
		"detail":      in.Detail,
	}, &env)
	if err != nil {
		return Balance{}, err
	}

	codeErr := mapCode(env)
	if codeErr != nil && codeErr != ErrRepeatUpdate {
		return Balance{}, codeErr
	}

	var data balancePayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Balance{}, fmt.Errorf("%w: decode balance: %v", ErrUnavailable, err)
		}
	}
	return Balance{Available: data.Available, Freeze: data.Freeze}, codeErr
}

// History returns matching ledger records plus the total match count.
func (c *HTTPClient) History(ctx context.Context, q HistoryQuery) ([]Record, int, error) {
	body := map[string]any{
		"user_id":  q.UserID,
		"asset":    q.Asset,
		"business": q.Business,
		"offset":   q.Offset,
		"limit":    q.Limit,
	}
	if !q.From.IsZero() {
		body["from"] = q.From.Unix()
	}
	if !q.To.IsZero() {
		body["to"] = q.To.Unix()
	}

	var env envelope
	if err := c.post(ctx, "/v1/balance/history", body, &env); err != nil {
		return nil, 0, err
	}
	if err := mapCode(env); err != nil {
		return nil, 0, err
	}

	var data struct {
		Total   int             `json:"total"`
		Records []recordPayload `json:"records"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, 0, fmt.Errorf("%w: decode history: %v", ErrUnavailable, err)
	}

	records := make([]Record, 0, len(data.Records))
	for _, r := range data.Records {
		records = append(records, Record{
			UserID:     r.UserID,
			Asset:      r.Asset,
			Business:   r.Business,
			BusinessID: r.BusinessID,
			Change:     r.Change,
			Detail:     r.Detail,
			Time:       time.Unix(r.Time, 0).UTC(),
		})
	}
	return records, data.Total, nil
}
