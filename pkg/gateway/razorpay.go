package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RazorpayClient talks to the Razorpay REST API with basic auth. Amounts
// cross the wire in currency subunits (paise/cents); callers work in whole
// currency units and the client converts at the boundary.
type RazorpayClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	client        *http.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret, webhookSecret string, timeout time.Duration) *RazorpayClient {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RazorpayClient{
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

type rzpOrder struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"` // subunits
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

func (o *rzpOrder) toOrder() *Order {
	return &Order{
		ID:        o.ID,
		Amount:    float64(o.Amount) / 100,
		Currency:  o.Currency,
		Receipt:   o.Receipt,
		Status:    o.Status,
		Notes:     o.Notes,
		CreatedAt: time.Unix(o.CreatedAt, 0),
	}
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	payload := map[string]interface{}{
		"amount":   int64(req.Amount * 100),
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}
	var out rzpOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &out); err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var out rzpOrder
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return out.toOrder(), nil
}

type rzpSubscription struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

func (c *RazorpayClient) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	payload := map[string]interface{}{
		"plan_id":         req.PlanID,
		"total_count":     req.TotalCount,
		"customer_notify": 1,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}
	var out rzpSubscription
	if err := c.do(ctx, http.MethodPost, "/v1/subscriptions", payload, &out); err != nil {
		return nil, err
	}
	return &Subscription{ID: out.ID, PlanID: out.PlanID, Status: out.Status}, nil
}

func (c *RazorpayClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return c.do(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionID+"/cancel", nil, nil)
}

func (c *RazorpayClient) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verify(paymentSignature(c.keySecret, orderID, paymentID), signature)
}

func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	return verify(webhookSignature(c.webhookSecret, body), signature)
}

// do performs one authenticated API call. Any failure is logged with the
// provider detail and wrapped as ErrGateway so internals never reach callers.
func (c *RazorpayClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGateway, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("gateway request failed")
		return ErrGateway
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Str("path", path).Bytes("body", respBody).Msg("gateway returned error")
		return ErrGateway
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		log.Error().Err(err).Str("path", path).Msg("gateway response decode failed")
		return ErrGateway
	}
	return nil
}
