package repository

import (
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"

	"gorm.io/gorm"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) Create(c *models.AffiliateCommission) error {
	return r.db.Create(c).Error
}

// GetByPeriodKey looks up the one row per {affiliate, subscription, period}.
func (r *CommissionRepository) GetByPeriodKey(affiliateID, subscriptionID uint, period string) (*models.AffiliateCommission, error) {
	var c models.AffiliateCommission
	err := r.db.Where("affiliate_id = ? AND subscription_id = ? AND commission_period = ?",
		affiliateID, subscriptionID, period).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) ListByAffiliate(affiliateID uint, limit, offset int) ([]models.AffiliateCommission, error) {
	var list []models.AffiliateCommission
	err := r.db.Where("affiliate_id = ?", affiliateID).
		Order("commission_period DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *CommissionRepository) List(status string, limit, offset int) ([]models.AffiliateCommission, error) {
	q := r.db.Model(&models.AffiliateCommission{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.AffiliateCommission
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListDueForRollover returns the latest active row of every commission chain
// whose next accrual date has elapsed.
func (r *CommissionRepository) ListDueForRollover(now time.Time, limit int) ([]models.AffiliateCommission, error) {
	var list []models.AffiliateCommission
	err := r.db.Where("subscription_active = ? AND next_commission_date IS NOT NULL AND next_commission_date <= ?", true, now).
		Order("next_commission_date ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkSubscriptionCancelled flips every row of the subscription's chain to
// inactive/expired, which stops future periods from accruing.
func (r *CommissionRepository) MarkSubscriptionCancelled(subscriptionID uint) error {
	return r.db.Model(&models.AffiliateCommission{}).
		Where("subscription_id = ? AND subscription_active = ?", subscriptionID, true).
		UpdateColumns(map[string]interface{}{
			"subscription_active": false,
			"status":              domain.CommissionExpired,
		}).Error
}

func (r *CommissionRepository) Update(c *models.AffiliateCommission) error {
	return r.db.Save(c).Error
}
