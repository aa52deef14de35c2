package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/testutil"
)

func createPayment(t *testing.T, repo *PaymentRepository, userID uint) *models.Payment {
	t.Helper()
	p := &models.Payment{
		UserID:         userID,
		OrderID:        "rcpt_test_1",
		GatewayOrderID: "order_gw_1",
		Plan:           domain.PlanPro,
		BillingPeriod:  domain.IntervalMonthly,
		Amount:         1999,
		Currency:       domain.CurrencyINR,
		Status:         domain.PaymentCreated,
	}
	require.NoError(t, repo.Create(p))
	return p
}

func TestAdvanceStatus_ForwardOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewPaymentRepository(db)

	user := testutil.TestUser(t, db)
	p := createPayment(t, repo, user.ID)

	require.NoError(t, repo.AdvanceStatus(p, domain.PaymentCaptured, "pay_1"))
	got, err := repo.GetByGatewayOrderID("order_gw_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	require.NotNil(t, got.CapturedAt)
	firstCapture := *got.CapturedAt

	// A late "authorized" cannot regress a captured payment.
	require.NoError(t, repo.AdvanceStatus(got, domain.PaymentAuthorized, "pay_other"))
	got, err = repo.GetByGatewayOrderID("order_gw_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)

	// Re-capturing does not move captured_at.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.AdvanceStatus(got, domain.PaymentCaptured, "pay_1"))
	got, err = repo.GetByGatewayOrderID("order_gw_1")
	require.NoError(t, err)
	assert.True(t, got.CapturedAt.Equal(firstCapture))
}

func TestAdvanceStatus_CreatedToAuthorized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewPaymentRepository(db)

	user := testutil.TestUser(t, db)
	p := createPayment(t, repo, user.ID)

	require.NoError(t, repo.AdvanceStatus(p, domain.PaymentAuthorized, ""))
	got, err := repo.GetByOrderID("rcpt_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentAuthorized, got.Status)
	assert.Nil(t, got.CapturedAt)
}
