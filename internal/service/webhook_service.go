package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// gatewayEvent mirrors the provider's webhook envelope: an event name plus
// event-specific entities in the payload.
type gatewayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"` // subunits
			} `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// WebhookService drives subscription state transitions from verified
// gateway events. The caller MUST have verified the delivery's signature;
// nothing unverified reaches Process.
type WebhookService struct {
	subRepo     *repository.SubscriptionRepository
	paymentRepo *repository.PaymentRepository
	eventRepo   *repository.WebhookEventRepository
	auditRepo   *repository.AuditLogRepository
	commissions *CommissionService
	now         func() time.Time
}

func NewWebhookService(subRepo *repository.SubscriptionRepository, paymentRepo *repository.PaymentRepository, eventRepo *repository.WebhookEventRepository, auditRepo *repository.AuditLogRepository, commissions *CommissionService) *WebhookService {
	return &WebhookService{
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		eventRepo:   eventRepo,
		auditRepo:   auditRepo,
		commissions: commissions,
		now:         time.Now,
	}
}

// Process handles one verified delivery. eventID is the gateway's delivery
// id header; when present it feeds the idempotency ledger, so re-delivered
// events are acknowledged without reprocessing (a duplicate
// subscription.charged cannot zero counters twice). Unknown event names are
// logged and ignored, not errors.
func (s *WebhookService) Process(eventID string, body []byte) error {
	var evt gatewayEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("malformed webhook body: %w", err)
	}
	if eventID != "" {
		err := s.eventRepo.Record(eventID, evt.Event, string(body))
		if errors.Is(err, repository.ErrDuplicateEvent) {
			log.Info().Str("event_id", eventID).Str("event", evt.Event).Msg("duplicate webhook delivery skipped")
			return nil
		}
		if err != nil {
			return err
		}
	}

	switch evt.Event {
	case "payment.captured":
		return s.onPaymentCaptured(&evt)
	case "subscription.charged":
		return s.onSubscriptionCharged(&evt)
	case "subscription.cancelled":
		return s.onSubscriptionStatus(&evt, domain.StatusCancelled, "cancelled_at")
	case "subscription.paused":
		return s.onSubscriptionStatus(&evt, domain.StatusPaused, "paused_at")
	case "subscription.resumed":
		return s.onSubscriptionStatus(&evt, domain.StatusActive, "resumed_at")
	default:
		log.Info().Str("event", evt.Event).Msg("ignoring unhandled webhook event")
		return nil
	}
}

// onPaymentCaptured activates the paying user's subscription with counters
// cleared for the fresh billing period, and advances the payment record.
func (s *WebhookService) onPaymentCaptured(evt *gatewayEvent) error {
	orderID := evt.Payload.Payment.Entity.OrderID
	if orderID == "" {
		return errors.New("payment.captured event missing order id")
	}
	payment, err := s.paymentRepo.GetByGatewayOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Order unknown to us (e.g. created in the dashboard); ack it.
			log.Warn().Str("gateway_order_id", orderID).Msg("captured payment for unknown order")
			return nil
		}
		return err
	}
	if err := s.paymentRepo.AdvanceStatus(payment, domain.PaymentCaptured, evt.Payload.Payment.Entity.ID); err != nil {
		return err
	}
	sub, err := s.subRepo.GetByUserID(payment.UserID)
	if err != nil {
		return err
	}
	if err := s.subRepo.UpdateStatus(sub.ID, domain.StatusActive, "", s.now()); err != nil {
		return err
	}
	if err := s.subRepo.ZeroUsageCounters(sub.ID); err != nil {
		return err
	}
	if err := s.commissions.AccrueForPayment(payment.UserID, sub, monthlyAmount(payment), payment.Currency); err != nil {
		log.Error().Err(err).Uint("user_id", payment.UserID).Msg("webhook commission accrual failed")
	}
	s.audit("webhook_payment_captured", payment.OrderID, &payment.UserID)
	return nil
}

// onSubscriptionCharged starts a fresh billing period: usage counters are
// zeroed and the charge is stamped.
func (s *WebhookService) onSubscriptionCharged(evt *gatewayEvent) error {
	sub, err := s.findByGatewaySubID(evt)
	if err != nil || sub == nil {
		return err
	}
	if err := s.subRepo.ZeroUsageCounters(sub.ID); err != nil {
		return err
	}
	if err := s.subRepo.UpdateStatus(sub.ID, domain.StatusActive, "last_charged_at", s.now()); err != nil {
		return err
	}
	if err := s.commissions.AccrueForPayment(sub.UserID, sub, sub.BillingAmount, sub.BillingCurrency); err != nil {
		log.Error().Err(err).Uint("user_id", sub.UserID).Msg("renewal commission accrual failed")
	}
	s.audit("webhook_subscription_charged", evt.Payload.Subscription.Entity.ID, &sub.UserID)
	return nil
}

func (s *WebhookService) onSubscriptionStatus(evt *gatewayEvent, status, stampColumn string) error {
	sub, err := s.findByGatewaySubID(evt)
	if err != nil || sub == nil {
		return err
	}
	if err := s.subRepo.UpdateStatus(sub.ID, status, stampColumn, s.now()); err != nil {
		return err
	}
	if status == domain.StatusCancelled {
		if err := s.commissions.MarkSubscriptionCancelled(sub.ID); err != nil {
			log.Error().Err(err).Uint("subscription_id", sub.ID).Msg("commission cancellation failed")
		}
	}
	s.audit("webhook_subscription_"+status, evt.Payload.Subscription.Entity.ID, &sub.UserID)
	return nil
}

func (s *WebhookService) findByGatewaySubID(evt *gatewayEvent) (*models.Subscription, error) {
	gwID := evt.Payload.Subscription.Entity.ID
	if gwID == "" {
		return nil, errors.New("subscription event missing subscription id")
	}
	sub, err := s.subRepo.GetByGatewaySubscriptionID(gwID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("gateway_subscription_id", gwID).Msg("event for unknown subscription")
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (s *WebhookService) audit(action, resourceID string, userID *uint) {
	_ = s.auditRepo.Create(&models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "webhook",
		ResourceID: resourceID,
	})
}
