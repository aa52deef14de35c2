package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/pricing"
	"postpilot/internal/repository"
	"postpilot/pkg/gateway"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature      = errors.New("payment signature verification failed")
	ErrOrderNotFound         = errors.New("order not found")
	ErrNoGatewaySubscription = errors.New("no recurring subscription on record")
)

// ValidationError carries field-level problems with a checkout request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Fields, "; ")
}

// Checkout is what the client needs to open the gateway's payment widget.
type Checkout struct {
	OrderID        string  `json:"order_id"`
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Plan           string  `json:"plan"`
	BillingPeriod  string  `json:"billing_period"`
}

// yearlyMultiplier prices yearly billing at 10 monthly periods instead of
// 12: a built-in 2-month discount.
const yearlyMultiplier = 10

type OrderService struct {
	paymentRepo *repository.PaymentRepository
	auditRepo   *repository.AuditLogRepository
	subs        *SubscriptionService
	commissions *CommissionService
	referrals   *ReferralService
	gw          gateway.Gateway
	calc        *pricing.Calculator
	now         func() time.Time
}

func NewOrderService(paymentRepo *repository.PaymentRepository, auditRepo *repository.AuditLogRepository, subs *SubscriptionService, commissions *CommissionService, referrals *ReferralService, gw gateway.Gateway, calc *pricing.Calculator) *OrderService {
	return &OrderService{
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		subs:        subs,
		commissions: commissions,
		referrals:   referrals,
		gw:          gw,
		calc:        calc,
		now:         time.Now,
	}
}

// CreateCreditOrder initiates checkout for a custom credit bundle. The
// bundle is stored in the gateway order's notes (and mirrored on the payment
// row) so capture can recover exactly what was bought.
func (s *OrderService) CreateCreditOrder(ctx context.Context, userID uint, bundle pricing.Bundle, currency, interval string) (*Checkout, error) {
	if v := pricing.Validate(bundle); !v.IsValid {
		return nil, &ValidationError{Fields: v.Errors}
	}
	amount := s.calc.Price(bundle, currency)
	if normalizeInterval(interval) == domain.IntervalYearly {
		amount *= yearlyMultiplier
	}
	planName := s.calc.PlanName(bundle)
	bundleJSON, _ := json.Marshal(bundle)
	return s.createOrder(ctx, userID, amount, currency, interval, planLabel(planName), map[string]string{
		"plan":    planName,
		"credits": string(bundleJSON),
	})
}

// CreatePlanOrder initiates checkout for a fixed plan (starter/pro).
func (s *OrderService) CreatePlanOrder(ctx context.Context, userID uint, plan, currency, interval string) (*Checkout, error) {
	if !domain.IsKnownPlan(plan) || plan == domain.PlanTrial {
		return nil, &ValidationError{Fields: []string{"plan must be one of: starter, pro"}}
	}
	limits := domain.LimitsForPlan(plan)
	amount := limits.PriceUSD
	if currency == domain.CurrencyINR {
		amount = limits.PriceINR
	} else {
		currency = domain.CurrencyUSD
	}
	if normalizeInterval(interval) == domain.IntervalYearly {
		amount *= yearlyMultiplier
	}
	return s.createOrder(ctx, userID, amount, currency, interval, plan, map[string]string{"plan": plan})
}

func (s *OrderService) createOrder(ctx context.Context, userID uint, amount float64, currency, interval, plan string, notes map[string]string) (*Checkout, error) {
	receipt := "rcpt_" + uuid.NewString()
	order, err := s.gw.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}
	notesJSON, _ := json.Marshal(notes)
	payment := &models.Payment{
		UserID:         userID,
		OrderID:        receipt,
		GatewayOrderID: order.ID,
		Plan:           plan,
		BillingPeriod:  normalizeInterval(interval),
		Amount:         amount,
		Currency:       currency,
		Status:         domain.PaymentCreated,
		Notes:          string(notesJSON),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}
	return &Checkout{
		OrderID:        receipt,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       currency,
		Plan:           plan,
		BillingPeriod:  payment.BillingPeriod,
	}, nil
}

// Autopay is the client-side handle for a provider-managed recurring
// subscription.
type Autopay struct {
	GatewaySubscriptionID string  `json:"gateway_subscription_id"`
	PlanID                string  `json:"plan_id"`
	Plan                  string  `json:"plan"`
	Amount                float64 `json:"amount"`
	Currency              string  `json:"currency"`
	BillingPeriod         string  `json:"billing_period"`
	Status                string  `json:"status"`
}

// CreatePlanSubscription sets up provider-managed recurring billing for a
// fixed plan. The gateway's subscription id lands on the subscription
// record; renewal events (subscription.charged and friends) resolve the
// record through it.
func (s *OrderService) CreatePlanSubscription(ctx context.Context, userID uint, plan, currency, interval string) (*Autopay, error) {
	if !domain.IsKnownPlan(plan) || plan == domain.PlanTrial {
		return nil, &ValidationError{Fields: []string{"plan must be one of: starter, pro"}}
	}
	limits := domain.LimitsForPlan(plan)
	amount := limits.PriceUSD
	if currency == domain.CurrencyINR {
		amount = limits.PriceINR
	} else {
		currency = domain.CurrencyUSD
	}
	interval = normalizeInterval(interval)
	totalCount := 12 // a year of coverage either way
	if interval == domain.IntervalYearly {
		amount *= yearlyMultiplier
		totalCount = 1
	}
	sub, err := s.subs.Get(userID)
	if err != nil {
		return nil, err
	}
	planID := fmt.Sprintf("plan_%s_%s_%s", plan, strings.ToLower(currency), interval)
	gwSub, err := s.gw.CreateSubscription(ctx, gateway.CreateSubscriptionRequest{
		PlanID:     planID,
		TotalCount: totalCount,
		Notes:      map[string]string{"plan": plan},
	})
	if err != nil {
		return nil, err
	}
	if err := s.subs.subRepo.SetGatewaySubscriptionID(sub.ID, gwSub.ID); err != nil {
		return nil, err
	}
	return &Autopay{
		GatewaySubscriptionID: gwSub.ID,
		PlanID:                planID,
		Plan:                  plan,
		Amount:                amount,
		Currency:              currency,
		BillingPeriod:         interval,
		Status:                gwSub.Status,
	}, nil
}

// CancelPlanSubscription cancels the provider-side recurring subscription
// and the local record; the commission chain stops with it.
func (s *OrderService) CancelPlanSubscription(ctx context.Context, userID uint) error {
	sub, err := s.subs.Get(userID)
	if err != nil {
		return err
	}
	if sub.GatewaySubscriptionID == nil {
		return ErrNoGatewaySubscription
	}
	if err := s.gw.CancelSubscription(ctx, *sub.GatewaySubscriptionID); err != nil {
		return err
	}
	if err := s.subs.subRepo.UpdateStatus(sub.ID, domain.StatusCancelled, "cancelled_at", s.now()); err != nil {
		return err
	}
	if err := s.commissions.MarkSubscriptionCancelled(sub.ID); err != nil {
		log.Error().Err(err).Uint("subscription_id", sub.ID).Msg("commission cancellation failed")
	}
	return nil
}

// OrderStatus pairs our payment row with the provider's view of the order.
type OrderStatus struct {
	Payment      *models.Payment `json:"payment"`
	GatewayOrder *gateway.Order  `json:"gateway_order,omitempty"`
}

// GetOrder looks up one of the caller's orders. The provider-side view is
// best effort; a gateway failure still returns the local record.
func (s *OrderService) GetOrder(ctx context.Context, userID uint, orderID string) (*OrderStatus, error) {
	payment, err := s.paymentRepo.GetByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if payment.UserID != userID {
		return nil, ErrOrderNotFound
	}
	gwOrder, err := s.gw.FetchOrder(ctx, payment.GatewayOrderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("gateway order lookup failed")
		gwOrder = nil
	}
	return &OrderStatus{Payment: payment, GatewayOrder: gwOrder}, nil
}

// ListPayments returns the caller's payment history, newest first.
func (s *OrderService) ListPayments(userID uint, limit, offset int) ([]models.Payment, error) {
	return s.paymentRepo.ListByUserID(userID, limit, offset)
}

// VerifyAndCapture is the client-side completion path: the frontend posts
// back the gateway's {order, payment, signature} triple after the widget
// succeeds. On a valid signature the payment advances to captured, the
// subscription is upgraded, and commission/reward side effects run as
// best-effort sequential writes.
func (s *OrderService) VerifyAndCapture(ctx context.Context, userID uint, gatewayOrderID, gatewayPaymentID, signature, ip, userAgent string) (*models.Subscription, error) {
	if !s.gw.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature) {
		log.Warn().Str("gateway_order_id", gatewayOrderID).Str("ip", ip).
			Msg("payment signature mismatch")
		return nil, ErrInvalidSignature
	}
	payment, err := s.paymentRepo.GetByGatewayOrderID(gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := s.paymentRepo.AdvanceStatus(payment, domain.PaymentCaptured, gatewayPaymentID); err != nil {
		return nil, err
	}
	sub, err := s.applyPurchase(payment)
	if err != nil {
		return nil, err
	}
	if err := s.commissions.AccrueForPayment(payment.UserID, sub, monthlyAmount(payment), payment.Currency); err != nil {
		log.Error().Err(err).Uint("user_id", payment.UserID).Msg("commission accrual failed")
	}
	s.rewardReferral(payment.UserID)
	_ = s.auditRepo.Create(&models.AuditLog{
		UserID:     &payment.UserID,
		Action:     "payment_captured",
		Resource:   "payment",
		ResourceID: payment.OrderID,
		IP:         ip,
		UserAgent:  userAgent,
	})
	return sub, nil
}

// applyPurchase upgrades the subscription according to what the payment's
// notes say was bought.
func (s *OrderService) applyPurchase(payment *models.Payment) (*models.Subscription, error) {
	if payment.Plan == domain.PlanCustom {
		var notes struct {
			Credits string `json:"credits"`
		}
		var bundle pricing.Bundle
		if err := json.Unmarshal([]byte(payment.Notes), &notes); err == nil && notes.Credits != "" {
			_ = json.Unmarshal([]byte(notes.Credits), &bundle)
		}
		return s.subs.UpgradeToCustomBundle(payment.UserID, bundle, payment.Amount, payment.Currency, payment.BillingPeriod)
	}
	return s.subs.UpgradePlan(payment.UserID, payment.Plan, payment.Currency, payment.BillingPeriod)
}

// rewardReferral flips the buyer's referral edge to rewarded on their first
// capture. Best effort: a failure here never fails the purchase.
func (s *OrderService) rewardReferral(userID uint) {
	ref, err := s.referrals.referralRepo.GetByReferredUserID(userID)
	if err != nil {
		return
	}
	if err := s.referrals.MarkRewarded(ref.ID); err != nil {
		log.Warn().Err(err).Uint("referral_id", ref.ID).Msg("referral reward failed")
	}
}

// monthlyAmount is the per-month slice of what was paid; commission accrues
// monthly even when billing is yearly.
func monthlyAmount(p *models.Payment) float64 {
	if p.BillingPeriod == domain.IntervalYearly {
		return p.Amount / yearlyMultiplier
	}
	return p.Amount
}

// planLabel collapses preset names onto subscription plan labels; anything
// that is not a fixed plan is a custom bundle.
func planLabel(planName string) string {
	switch planName {
	case domain.PlanStarter, domain.PlanPro:
		return planName
	}
	return domain.PlanCustom
}
