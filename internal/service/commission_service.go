package service

import (
	"errors"
	"math"
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CalculateCommission rounds amount*rate/100 to the nearest whole unit:
// 1000 at 10% is 100, and so is 999.
func CalculateCommission(amount, rate float64) float64 {
	return math.Round(amount * rate / 100)
}

// CommissionPeriod formats the accrual month key.
func CommissionPeriod(t time.Time) string {
	return t.Format("2006-01")
}

// CommissionService owns the accrual ledger: one AffiliateCommission row per
// {affiliate, subscription, period}, created when a referred subscription
// pays and again per renewal period until the chain is cancelled.
type CommissionService struct {
	commissionRepo *repository.CommissionRepository
	affiliateRepo  *repository.AffiliateRepository
	referralRepo   *repository.ReferralRepository
	now            func() time.Time
}

func NewCommissionService(commissionRepo *repository.CommissionRepository, affiliateRepo *repository.AffiliateRepository, referralRepo *repository.ReferralRepository) *CommissionService {
	return &CommissionService{
		commissionRepo: commissionRepo,
		affiliateRepo:  affiliateRepo,
		referralRepo:   referralRepo,
		now:            time.Now,
	}
}

// AccrueForPayment runs when a referred user's subscription becomes paid for
// a billing period. It resolves referral attribution, then upserts the
// period's ledger row and advances the affiliate's aggregates. Users without
// an affiliate-attributed referral are simply skipped.
func (s *CommissionService) AccrueForPayment(referredUserID uint, sub *models.Subscription, amount float64, currency string) error {
	referral, err := s.referralRepo.GetByReferredUserID(referredUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // not a referred user
		}
		return err
	}
	affiliate, err := s.affiliateRepo.GetByCode(referral.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // user-to-user referral, no affiliate attached
		}
		return err
	}
	if !affiliate.CanEarn() {
		log.Info().Uint("affiliate_id", affiliate.ID).Str("status", affiliate.Status).
			Msg("skipping accrual for non-earning affiliate")
		return nil
	}
	return s.accruePeriod(affiliate.ID, referredUserID, sub.ID, amount, currency, CommissionPeriod(s.now()))
}

func (s *CommissionService) accruePeriod(affiliateID, referredUserID, subscriptionID uint, amount float64, currency, period string) error {
	if _, err := s.commissionRepo.GetByPeriodKey(affiliateID, subscriptionID, period); err == nil {
		return nil // this period already accrued
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	next := nextPeriodDate(s.now())
	row := &models.AffiliateCommission{
		AffiliateID:               affiliateID,
		SubscriptionID:            subscriptionID,
		ReferredUserID:            referredUserID,
		CommissionPeriod:          period,
		MonthlySubscriptionAmount: amount,
		CommissionRate:            domain.CommissionRate,
		MonthlyCommissionAmount:   CalculateCommission(amount, domain.CommissionRate),
		Currency:                  currency,
		Status:                    domain.CommissionPending,
		SubscriptionActive:        true,
		MinimumPayout:             domain.MinimumPayoutINR,
		NextCommissionDate:        &next,
	}
	if err := s.commissionRepo.Create(row); err != nil {
		return err
	}
	if err := s.affiliateRepo.AddCommissionEarnings(affiliateID, row.MonthlyCommissionAmount); err != nil {
		// Aggregate drift; the ledger row is the source of truth.
		log.Error().Err(err).Uint("affiliate_id", affiliateID).Msg("failed to advance affiliate aggregates")
	}
	log.Info().
		Uint("affiliate_id", affiliateID).
		Uint("subscription_id", subscriptionID).
		Str("period", period).
		Float64("commission", row.MonthlyCommissionAmount).
		Msg("commission accrued")
	return nil
}

// MarkSubscriptionCancelled stops the chain: subscription_active=false and
// status=expired on its rows, after which no future period accrues.
func (s *CommissionService) MarkSubscriptionCancelled(subscriptionID uint) error {
	return s.commissionRepo.MarkSubscriptionCancelled(subscriptionID)
}

// RolloverDuePeriods is the daily sweep creating the next period's row for
// every still-active commission chain whose next accrual date elapsed. The
// subscription_active query is what enforces the cancellation gate.
func (s *CommissionService) RolloverDuePeriods(batch int) (int, error) {
	due, err := s.commissionRepo.ListDueForRollover(s.now(), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range due {
		row := &due[i]
		err := s.accruePeriod(row.AffiliateID, row.ReferredUserID, row.SubscriptionID,
			row.MonthlySubscriptionAmount, row.Currency, CommissionPeriod(s.now()))
		if err != nil {
			log.Error().Err(err).Uint("commission_id", row.ID).Msg("period rollover failed")
			continue
		}
		// The old row's accrual pointer is consumed.
		row.NextCommissionDate = nil
		if err := s.commissionRepo.Update(row); err != nil {
			log.Error().Err(err).Uint("commission_id", row.ID).Msg("failed to clear rollover pointer")
		}
		n++
	}
	return n, nil
}

// ListForAffiliate returns the affiliate's ledger, newest period first.
func (s *CommissionService) ListForAffiliate(affiliateID uint, limit, offset int) ([]models.AffiliateCommission, error) {
	return s.commissionRepo.ListByAffiliate(affiliateID, limit, offset)
}

func nextPeriodDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
