package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Intent statuses reported by FastPay.
const (
	IntentSucceeded       = "succeeded"
	IntentFailed          = "failed"
	IntentRequiresPayment = "requires_payment"
)

// Intent is a single payment attempt on the FastPay side.
type Intent struct {
	ID          string `json:"id"`
	ClientToken string `json:"client_token"`
	Status      string `json:"status"`
}

type PaymentGateway interface {
	// CreateIntent starts a payment attempt. Metadata must carry the order
	// linkage; it is the only way asynchronous events find their order.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	// CheckStatus asks FastPay for the attempt's current status.
	CheckStatus(ctx context.Context, intentID string) (string, error)
}

type fastPayGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewFastPayGateway returns a PaymentGateway backed by the FastPay HTTP API.
// The client timeout bounds the creation call: on timeout the order stays
// pending and the reaper resolves it, rather than retrying a creation that
// may have succeeded server-side.
func NewFastPayGateway(baseURL, apiKey string, timeout time.Duration) PaymentGateway {
	return &fastPayGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type createIntentRequest struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

func (g *fastPayGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	body, err := json.Marshal(createIntentRequest{
		Amount:   amount.StringFixed(2),
		Currency: currency,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fastpay create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fastpay create intent: status %d: %s", resp.StatusCode, b)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("fastpay create intent: decode response: %w", err)
	}
	return &intent, nil
}

func (g *fastPayGateway) CheckStatus(ctx context.Context, intentID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payment_intents/"+intentID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fastpay check status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fastpay check status: status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return "", fmt.Errorf("fastpay check status: decode response: %w", err)
	}
	return intent.Status, nil
}
