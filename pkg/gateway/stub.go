package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Stub is an in-memory provider for development and tests. Signatures are
// computed with the same HMAC scheme as the real client.
type Stub struct {
	Secret        string
	WebhookSecret string
	seq           atomic.Int64
}

func NewStub(secret, webhookSecret string) *Stub {
	return &Stub{Secret: secret, WebhookSecret: webhookSecret}
}

func (s *Stub) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	return &Order{
		ID:        fmt.Sprintf("order_stub%08d", s.seq.Add(1)),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		Notes:     req.Notes,
		CreatedAt: time.Now(),
	}, nil
}

func (s *Stub) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if !strings.HasPrefix(orderID, "order_stub") {
		return nil, ErrGateway
	}
	return &Order{ID: orderID, Status: "created", CreatedAt: time.Now()}, nil
}

func (s *Stub) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	return &Subscription{
		ID:     fmt.Sprintf("sub_stub%08d", s.seq.Add(1)),
		PlanID: req.PlanID,
		Status: "created",
	}, nil
}

func (s *Stub) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func (s *Stub) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verify(paymentSignature(s.Secret, orderID, paymentID), signature)
}

func (s *Stub) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	return verify(webhookSignature(s.WebhookSecret, body), signature)
}

// SignPayment is a test helper producing a valid payment signature.
func (s *Stub) SignPayment(orderID, paymentID string) string {
	return paymentSignature(s.Secret, orderID, paymentID)
}

// SignWebhook is a test helper producing a valid webhook signature.
func (s *Stub) SignWebhook(body []byte) string {
	return webhookSignature(s.WebhookSecret, body)
}
