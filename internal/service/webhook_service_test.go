package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/repository"
	"postpilot/internal/testutil"
)

func newWebhookService(t *testing.T) (*WebhookService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	commissions := NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewAffiliateRepository(db),
		repository.NewReferralRepository(db),
	)
	svc := NewWebhookService(
		repository.NewSubscriptionRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewWebhookEventRepository(db),
		repository.NewAuditLogRepository(db),
		commissions,
	)
	return svc, db
}

func capturedBody(gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":199900}}}}`,
		paymentID, gatewayOrderID))
}

func subscriptionBody(event, gwSubID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"subscription":{"entity":{"id":%q}}}}`, event, gwSubID))
}

func TestProcess_PaymentCaptured(t *testing.T) {
	svc, db := newWebhookService(t)

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID)
	payment := &models.Payment{
		UserID:         user.ID,
		OrderID:        "rcpt_abc",
		GatewayOrderID: "order_gw_1",
		Plan:           domain.PlanPro,
		BillingPeriod:  domain.IntervalMonthly,
		Amount:         1999,
		Currency:       domain.CurrencyINR,
		Status:         domain.PaymentCreated,
	}
	require.NoError(t, db.Create(payment).Error)
	setSubColumns(t, db, sub.ID, map[string]interface{}{"used_posts": 7, "tokens_used": 20})

	require.NoError(t, svc.Process("evt_1", capturedBody("order_gw_1", "pay_99")))

	var gotPay models.Payment
	require.NoError(t, db.First(&gotPay, payment.ID).Error)
	assert.Equal(t, domain.PaymentCaptured, gotPay.Status)
	assert.Equal(t, "pay_99", gotPay.GatewayPaymentID)
	require.NotNil(t, gotPay.CapturedAt)

	var gotSub models.Subscription
	require.NoError(t, db.First(&gotSub, sub.ID).Error)
	assert.Equal(t, domain.StatusActive, gotSub.Status)
	assert.Equal(t, 0, gotSub.UsedPosts)
	assert.Equal(t, 0, gotSub.TokensUsed)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "webhook_payment_captured").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestProcess_DuplicateDeliverySkipped(t *testing.T) {
	svc, db := newWebhookService(t)

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID)
	gwID := "sub_gw_1"
	setSubColumns(t, db, sub.ID, map[string]interface{}{
		"gateway_subscription_id": gwID,
		"used_posts":              5,
	})

	body := subscriptionBody("subscription.charged", gwID)
	require.NoError(t, svc.Process("evt_dup", body))

	// Usage zeroed by the first delivery; simulate new usage after it.
	setSubColumns(t, db, sub.ID, map[string]interface{}{"used_posts": 3})

	// Same delivery id again: acknowledged without touching counters.
	require.NoError(t, svc.Process("evt_dup", body))

	var got models.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, 3, got.UsedPosts)
}

func TestProcess_SubscriptionCharged(t *testing.T) {
	svc, db := newWebhookService(t)
	charged := time.Date(2025, 4, 10, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return charged }

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID, testutil.WithPlan(domain.PlanPro, domain.StatusActive))
	setSubColumns(t, db, sub.ID, map[string]interface{}{
		"gateway_subscription_id": "sub_gw_2",
		"used_posts":              50,
		"tokens_used":             300,
	})

	require.NoError(t, svc.Process("evt_2", subscriptionBody("subscription.charged", "sub_gw_2")))

	var got models.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, 0, got.UsedPosts)
	assert.Equal(t, 0, got.TokensUsed)
	assert.Equal(t, got.TokensTotal, got.TokensRemaining)
	require.NotNil(t, got.LastChargedAt)
	assert.True(t, got.LastChargedAt.Equal(charged))
}

func TestProcess_SubscriptionCancelled(t *testing.T) {
	svc, db := newWebhookService(t)

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID, testutil.WithPlan(domain.PlanPro, domain.StatusActive))
	setSubColumns(t, db, sub.ID, map[string]interface{}{"gateway_subscription_id": "sub_gw_3"})

	// A live commission chain for this subscription.
	affiliate := testutil.TestAffiliate(t, db)
	row := &models.AffiliateCommission{
		AffiliateID:               affiliate.ID,
		SubscriptionID:            sub.ID,
		ReferredUserID:            user.ID,
		CommissionPeriod:          "2025-03",
		MonthlySubscriptionAmount: 1999,
		CommissionRate:            domain.CommissionRate,
		MonthlyCommissionAmount:   200,
		Currency:                  domain.CurrencyINR,
		Status:                    domain.CommissionPending,
		SubscriptionActive:        true,
	}
	require.NoError(t, db.Create(row).Error)

	require.NoError(t, svc.Process("evt_3", subscriptionBody("subscription.cancelled", "sub_gw_3")))

	var got models.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	var gotRow models.AffiliateCommission
	require.NoError(t, db.First(&gotRow, row.ID).Error)
	assert.False(t, gotRow.SubscriptionActive)
	assert.Equal(t, domain.CommissionExpired, gotRow.Status)
}

func TestProcess_PauseAndResume(t *testing.T) {
	svc, db := newWebhookService(t)

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID, testutil.WithPlan(domain.PlanStarter, domain.StatusActive))
	setSubColumns(t, db, sub.ID, map[string]interface{}{"gateway_subscription_id": "sub_gw_4"})

	require.NoError(t, svc.Process("evt_4", subscriptionBody("subscription.paused", "sub_gw_4")))
	var got models.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, domain.StatusPaused, got.Status)
	require.NotNil(t, got.PausedAt)

	require.NoError(t, svc.Process("evt_5", subscriptionBody("subscription.resumed", "sub_gw_4")))
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, domain.StatusActive, got.Status)
	require.NotNil(t, got.ResumedAt)
}

func TestProcess_UnknownEventIgnored(t *testing.T) {
	svc, _ := newWebhookService(t)

	assert.NoError(t, svc.Process("evt_6", []byte(`{"event":"invoice.generated","payload":{}}`)))
}

func TestProcess_UnknownOrderAcknowledged(t *testing.T) {
	svc, _ := newWebhookService(t)

	assert.NoError(t, svc.Process("evt_7", capturedBody("order_unknown", "pay_1")))
}

func TestProcess_MalformedBody(t *testing.T) {
	svc, _ := newWebhookService(t)

	assert.Error(t, svc.Process("evt_8", []byte("{not json")))
}
