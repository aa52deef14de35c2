package service

import (
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

func TestCalculateCommission_Rounding(t *testing.T) {
	assert.Equal(t, 100.0, CalculateCommission(1000, 10))
	assert.Equal(t, 100.0, CalculateCommission(999, 10))  // 99.9 rounds up
	assert.Equal(t, 100.0, CalculateCommission(1004, 10)) // 100.4 rounds down
	assert.Equal(t, 2.0, CalculateCommission(24, 10))
	assert.Equal(t, 0.0, CalculateCommission(0, 10))
}

func TestCommissionPeriod_Format(t *testing.T) {
	assert.Equal(t, "2025-03", CommissionPeriod(time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2025-12", CommissionPeriod(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func newCommissionService(t *testing.T) (*CommissionService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	svc := NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewAffiliateRepository(db),
		repository.NewReferralRepository(db),
	)
	return svc, db
}

// referredSetup wires affiliate -> referral -> referred user -> subscription.
func referredSetup(t *testing.T, db *gorm.DB) (*models.Affiliate, *models.User, *models.Subscription) {
	t.Helper()
	affiliate := testutil.TestAffiliate(t, db)
	referred := testutil.TestUser(t, db)
	testutil.TestReferral(t, db, affiliate.ID,
		testutil.WithReferralCode(affiliate.AffiliateCode),
		testutil.WithReferralStatus(domain.ReferralCompleted),
		func(r *models.Referral) { r.ReferredUserID = &referred.ID },
	)
	sub := testutil.TestSubscription(t, db, referred.ID, testutil.WithPlan(domain.PlanPro, domain.StatusActive))
	return affiliate, referred, sub
}

func TestAccrueForPayment_CreatesLedgerRow(t *testing.T) {
	svc, db := newCommissionService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	affiliate, referred, sub := referredSetup(t, db)

	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	var row models.AffiliateCommission
	require.NoError(t, db.Where("affiliate_id = ?", affiliate.ID).First(&row).Error)
	assert.Equal(t, "2025-03", row.CommissionPeriod)
	assert.Equal(t, 1999.0, row.MonthlySubscriptionAmount)
	assert.Equal(t, 10.0, row.CommissionRate)
	assert.Equal(t, 200.0, row.MonthlyCommissionAmount)
	assert.Equal(t, domain.CommissionPending, row.Status)
	assert.True(t, row.SubscriptionActive)
	require.NotNil(t, row.NextCommissionDate)
	assert.True(t, row.NextCommissionDate.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))

	// Affiliate aggregates advanced.
	var a models.Affiliate
	require.NoError(t, db.First(&a, affiliate.ID).Error)
	assert.Equal(t, 200.0, a.TotalCommissionsEarned)
}

func TestAccrueForPayment_AttributionViaAffiliateCodeSignup(t *testing.T) {
	svc, db := newCommissionService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	// Only the Affiliate row exists up front; the edge must come from the
	// signup flow, not a pre-seeded fixture.
	affiliate := testutil.TestAffiliate(t, db)
	referred := testutil.TestUser(t, db)
	referrals := NewReferralService(
		repository.NewReferralRepository(db),
		repository.NewUserRepository(db),
		repository.NewAffiliateRepository(db),
		LogMailer{}, 10, 10,
	)
	require.NoError(t, referrals.CompleteReferral(affiliate.AffiliateCode, referred))
	sub := testutil.TestSubscription(t, db, referred.ID, testutil.WithPlan(domain.PlanPro, domain.StatusActive))

	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	var count int64
	require.NoError(t, db.Model(&models.AffiliateCommission{}).
		Where("affiliate_id = ?", affiliate.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAccrueForPayment_SamePeriodOnce(t *testing.T) {
	svc, db := newCommissionService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	affiliate, referred, sub := referredSetup(t, db)

	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))
	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	var count int64
	require.NoError(t, db.Model(&models.AffiliateCommission{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAccrueForPayment_SkipsUnreferredUser(t *testing.T) {
	svc, db := newCommissionService(t)

	user := testutil.TestUser(t, db)
	sub := testutil.TestSubscription(t, db, user.ID)

	require.NoError(t, svc.AccrueForPayment(user.ID, sub, 1999, domain.CurrencyINR))

	var count int64
	require.NoError(t, db.Model(&models.AffiliateCommission{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAccrueForPayment_SkipsNonEarningAffiliate(t *testing.T) {
	svc, db := newCommissionService(t)

	affiliate := testutil.TestAffiliate(t, db, testutil.WithAffiliateStatus(domain.AffiliateSuspended, false))
	referred := testutil.TestUser(t, db)
	testutil.TestReferral(t, db, affiliate.ID,
		testutil.WithReferralCode(affiliate.AffiliateCode),
		testutil.WithReferralStatus(domain.ReferralCompleted),
		func(r *models.Referral) { r.ReferredUserID = &referred.ID },
	)
	sub := testutil.TestSubscription(t, db, referred.ID)

	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	var count int64
	require.NoError(t, db.Model(&models.AffiliateCommission{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRolloverDuePeriods(t *testing.T) {
	svc, db := newCommissionService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	affiliate, referred, sub := referredSetup(t, db)
	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	// March's pointer targets April 1; sweeping in April creates the new row.
	svc.now = func() time.Time { return time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC) }
	n, err := svc.RolloverDuePeriods(100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var rows []models.AffiliateCommission
	require.NoError(t, db.Where("affiliate_id = ?", affiliate.ID).Order("commission_period").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03", rows[0].CommissionPeriod)
	assert.Nil(t, rows[0].NextCommissionDate)
	assert.Equal(t, "2025-04", rows[1].CommissionPeriod)
	require.NotNil(t, rows[1].NextCommissionDate)

	// A second sweep the same day finds nothing due.
	n, err = svc.RolloverDuePeriods(100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRollover_StopsAfterCancellation(t *testing.T) {
	svc, db := newCommissionService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }

	affiliate, referred, sub := referredSetup(t, db)
	require.NoError(t, svc.AccrueForPayment(referred.ID, sub, 1999, domain.CurrencyINR))

	require.NoError(t, svc.MarkSubscriptionCancelled(sub.ID))

	var row models.AffiliateCommission
	require.NoError(t, db.Where("affiliate_id = ?", affiliate.ID).First(&row).Error)
	assert.False(t, row.SubscriptionActive)
	assert.Equal(t, domain.CommissionExpired, row.Status)

	svc.now = func() time.Time { return time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC) }
	n, err := svc.RolloverDuePeriods(100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int64
	require.NoError(t, db.Model(&models.AffiliateCommission{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
