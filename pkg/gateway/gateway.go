// Package gateway wraps the external payment provider behind a small
// interface: order/subscription creation, order lookup and cancellation.
// Signature verification lives in signature.go because the HMAC construction
// is a bit-exact contract with the provider.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrGateway wraps every provider call failure. Callers surface a generic
// "payment operation failed" and the original error is logged, never leaked.
var ErrGateway = errors.New("payment operation failed")

// Order is the provider-side order entity.
type Order struct {
	ID        string            `json:"id"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt time.Time         `json:"created_at"`
}

// Subscription is the provider-side recurring subscription entity.
type Subscription struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

type CreateOrderRequest struct {
	Amount   float64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type CreateSubscriptionRequest struct {
	PlanID     string
	TotalCount int // number of billing cycles
	Notes      map[string]string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}
