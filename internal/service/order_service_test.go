package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/pricing"
	"postpilot/internal/repository"
	"postpilot/internal/testutil"
	"postpilot/pkg/gateway"
)

func newOrderService(t *testing.T) (*OrderService, *gateway.Stub, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	stub := gateway.NewStub("test-secret", "test-webhook-secret")
	subs := NewSubscriptionService(repository.NewSubscriptionRepository(db))
	referrals := NewReferralService(repository.NewReferralRepository(db), repository.NewUserRepository(db), repository.NewAffiliateRepository(db), LogMailer{}, 10, 10)
	commissions := NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewAffiliateRepository(db),
		repository.NewReferralRepository(db),
	)
	svc := NewOrderService(
		repository.NewPaymentRepository(db),
		repository.NewAuditLogRepository(db),
		subs, commissions, referrals, stub,
		pricing.NewCalculator(pricing.Default()),
	)
	return svc, stub, db
}

func trialUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := testutil.TestUser(t, db)
	testutil.TestSubscription(t, db, user.ID)
	return user
}

func TestCreateCreditOrder_CustomBundle(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	bundle := pricing.Bundle{Posts: 40, Comments: 30, Ideas: 20}
	co, err := svc.CreateCreditOrder(context.Background(), user.ID, bundle, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	// 40*0.25 + 30*0.10 + 20*0.05
	assert.Equal(t, 14.0, co.Amount)
	assert.Equal(t, domain.PlanCustom, co.Plan)
	assert.True(t, strings.HasPrefix(co.OrderID, "rcpt_"))
	assert.NotEmpty(t, co.GatewayOrderID)

	var payment models.Payment
	require.NoError(t, db.Where("order_id = ?", co.OrderID).First(&payment).Error)
	assert.Equal(t, domain.PaymentCreated, payment.Status)
	assert.Contains(t, payment.Notes, `"credits"`)
}

func TestCreateCreditOrder_PresetMatchAndYearly(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	// {50,50,30} is the pro preset; yearly billing pays 10 months.
	bundle := pricing.Bundle{Posts: 50, Comments: 50, Ideas: 30}
	co, err := svc.CreateCreditOrder(context.Background(), user.ID, bundle, domain.CurrencyUSD, domain.IntervalYearly)
	require.NoError(t, err)
	assert.Equal(t, 240.0, co.Amount)
	assert.Equal(t, domain.PlanPro, co.Plan)
	assert.Equal(t, domain.IntervalYearly, co.BillingPeriod)
}

func TestCreateCreditOrder_RejectsOutOfRangeBundle(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	_, err := svc.CreateCreditOrder(context.Background(), user.ID, pricing.Bundle{Posts: 5, Comments: 20, Ideas: 200}, domain.CurrencyUSD, domain.IntervalMonthly)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestCreatePlanOrder(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	co, err := svc.CreatePlanOrder(context.Background(), user.ID, domain.PlanStarter, domain.CurrencyINR, domain.IntervalMonthly)
	require.NoError(t, err)
	assert.Equal(t, 999.0, co.Amount)
	assert.Equal(t, domain.CurrencyINR, co.Currency)

	_, err = svc.CreatePlanOrder(context.Background(), user.ID, domain.PlanTrial, domain.CurrencyUSD, domain.IntervalMonthly)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestVerifyAndCapture_HappyPath(t *testing.T) {
	svc, stub, db := newOrderService(t)
	user := trialUser(t, db)

	co, err := svc.CreatePlanOrder(context.Background(), user.ID, domain.PlanPro, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	sig := stub.SignPayment(co.GatewayOrderID, "pay_123")
	sub, err := svc.VerifyAndCapture(context.Background(), user.ID, co.GatewayOrderID, "pay_123", sig, "203.0.113.9", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, domain.PlanPro, sub.Plan)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, 2000, sub.TokensTotal)

	var payment models.Payment
	require.NoError(t, db.Where("gateway_order_id = ?", co.GatewayOrderID).First(&payment).Error)
	assert.Equal(t, domain.PaymentCaptured, payment.Status)
	assert.Equal(t, "pay_123", payment.GatewayPaymentID)
	require.NotNil(t, payment.CapturedAt)

	// users.plan synced with the subscription.
	var gotUser models.User
	require.NoError(t, db.First(&gotUser, user.ID).Error)
	assert.Equal(t, domain.PlanPro, gotUser.Plan)

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "payment_captured").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestVerifyAndCapture_CustomBundleFromNotes(t *testing.T) {
	svc, stub, db := newOrderService(t)
	user := trialUser(t, db)

	bundle := pricing.Bundle{Posts: 40, Comments: 30, Ideas: 20}
	co, err := svc.CreateCreditOrder(context.Background(), user.ID, bundle, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	sig := stub.SignPayment(co.GatewayOrderID, "pay_456")
	sub, err := svc.VerifyAndCapture(context.Background(), user.ID, co.GatewayOrderID, "pay_456", sig, "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.PlanCustom, sub.Plan)
	assert.Equal(t, 40, sub.LimitPosts)
	assert.Equal(t, 30, sub.LimitComments)
	assert.Equal(t, 20, sub.LimitIdeas)
}

func TestVerifyAndCapture_BadSignature(t *testing.T) {
	svc, stub, db := newOrderService(t)
	user := trialUser(t, db)

	co, err := svc.CreatePlanOrder(context.Background(), user.ID, domain.PlanPro, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	// Signature for a different payment id does not verify.
	sig := stub.SignPayment(co.GatewayOrderID, "pay_other")
	_, err = svc.VerifyAndCapture(context.Background(), user.ID, co.GatewayOrderID, "pay_123", sig, "", "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// The payment record is untouched.
	var payment models.Payment
	require.NoError(t, db.Where("gateway_order_id = ?", co.GatewayOrderID).First(&payment).Error)
	assert.Equal(t, domain.PaymentCreated, payment.Status)
}

func TestVerifyAndCapture_UnknownOrder(t *testing.T) {
	svc, stub, _ := newOrderService(t)

	sig := stub.SignPayment("order_missing", "pay_123")
	_, err := svc.VerifyAndCapture(context.Background(), 1, "order_missing", "pay_123", sig, "", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyAndCapture_RewardsReferralAndAccrues(t *testing.T) {
	svc, stub, db := newOrderService(t)

	affiliate := testutil.TestAffiliate(t, db)
	buyer := trialUser(t, db)
	ref := testutil.TestReferral(t, db, affiliate.ID,
		testutil.WithReferralCode(affiliate.AffiliateCode),
		testutil.WithReferralStatus(domain.ReferralCompleted),
		func(r *models.Referral) { r.ReferredUserID = &buyer.ID },
	)

	co, err := svc.CreatePlanOrder(context.Background(), buyer.ID, domain.PlanPro, domain.CurrencyINR, domain.IntervalMonthly)
	require.NoError(t, err)
	sig := stub.SignPayment(co.GatewayOrderID, "pay_789")
	_, err = svc.VerifyAndCapture(context.Background(), buyer.ID, co.GatewayOrderID, "pay_789", sig, "", "")
	require.NoError(t, err)

	var gotRef models.Referral
	require.NoError(t, db.First(&gotRef, ref.ID).Error)
	assert.Equal(t, domain.ReferralRewarded, gotRef.Status)
	require.NotNil(t, gotRef.RewardedAt)

	var row models.AffiliateCommission
	require.NoError(t, db.Where("affiliate_id = ?", affiliate.ID).First(&row).Error)
	assert.Equal(t, 200.0, row.MonthlyCommissionAmount) // 10% of 1999, rounded
	assert.Equal(t, CommissionPeriod(time.Now()), row.CommissionPeriod)
}

func TestCreatePlanSubscription_StoresGatewayID(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	autopay, err := svc.CreatePlanSubscription(context.Background(), user.ID, domain.PlanPro, domain.CurrencyINR, domain.IntervalMonthly)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(autopay.GatewaySubscriptionID, "sub_stub"))
	assert.Equal(t, "plan_pro_inr_monthly", autopay.PlanID)
	assert.Equal(t, 1999.0, autopay.Amount)

	// Renewal webhooks resolve the record through the stored id.
	got, err := repository.NewSubscriptionRepository(db).GetByGatewaySubscriptionID(autopay.GatewaySubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
}

func TestCreatePlanSubscription_RejectsTrialPlan(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	_, err := svc.CreatePlanSubscription(context.Background(), user.ID, domain.PlanTrial, domain.CurrencyUSD, domain.IntervalMonthly)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCancelPlanSubscription(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	// Nothing to cancel before autopay is set up.
	assert.ErrorIs(t, svc.CancelPlanSubscription(context.Background(), user.ID), ErrNoGatewaySubscription)

	autopay, err := svc.CreatePlanSubscription(context.Background(), user.ID, domain.PlanPro, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	// An accrued commission chain on this subscription must stop.
	sub, err := repository.NewSubscriptionRepository(db).GetByGatewaySubscriptionID(autopay.GatewaySubscriptionID)
	require.NoError(t, err)
	affiliate := testutil.TestAffiliate(t, db)
	row := &models.AffiliateCommission{
		AffiliateID:               affiliate.ID,
		SubscriptionID:            sub.ID,
		ReferredUserID:            user.ID,
		CommissionPeriod:          "2025-03",
		MonthlySubscriptionAmount: 1999,
		CommissionRate:            10,
		MonthlyCommissionAmount:   200,
		Currency:                  domain.CurrencyINR,
		Status:                    domain.CommissionPending,
		SubscriptionActive:        true,
	}
	require.NoError(t, db.Create(row).Error)

	require.NoError(t, svc.CancelPlanSubscription(context.Background(), user.ID))

	got, err := repository.NewSubscriptionRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	var gotRow models.AffiliateCommission
	require.NoError(t, db.First(&gotRow, row.ID).Error)
	assert.False(t, gotRow.SubscriptionActive)
}

func TestGetOrder(t *testing.T) {
	svc, _, db := newOrderService(t)
	user := trialUser(t, db)

	co, err := svc.CreatePlanOrder(context.Background(), user.ID, domain.PlanStarter, domain.CurrencyUSD, domain.IntervalMonthly)
	require.NoError(t, err)

	status, err := svc.GetOrder(context.Background(), user.ID, co.OrderID)
	require.NoError(t, err)
	assert.Equal(t, co.GatewayOrderID, status.Payment.GatewayOrderID)
	require.NotNil(t, status.GatewayOrder)
	assert.Equal(t, co.GatewayOrderID, status.GatewayOrder.ID)

	// Another user cannot see the order.
	other := trialUser(t, db)
	_, err = svc.GetOrder(context.Background(), other.ID, co.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetOrder(context.Background(), user.ID, "rcpt_nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
