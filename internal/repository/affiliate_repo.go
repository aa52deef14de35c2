package repository

import (
	"time"

	"postpilot/internal/models"

	"gorm.io/gorm"
)

type AffiliateRepository struct {
	db *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) Create(a *models.Affiliate) error {
	return r.db.Create(a).Error
}

func (r *AffiliateRepository) GetByID(id uint) (*models.Affiliate, error) {
	var a models.Affiliate
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AffiliateRepository) GetByEmail(email string) (*models.Affiliate, error) {
	var a models.Affiliate
	if err := r.db.Where("email = ?", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AffiliateRepository) GetByCode(code string) (*models.Affiliate, error) {
	var a models.Affiliate
	if err := r.db.Where("affiliate_code = ?", code).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AffiliateRepository) CodeExists(code string) (bool, error) {
	var n int64
	err := r.db.Model(&models.Affiliate{}).Where("affiliate_code = ?", code).Count(&n).Error
	return n > 0, err
}

// SetStatus applies a workflow transition; is_active moves in lockstep with
// status == active.
func (r *AffiliateRepository) SetStatus(id uint, status string, isActive bool, stampColumn string, at time.Time) error {
	updates := map[string]interface{}{
		"status":    status,
		"is_active": isActive,
	}
	if stampColumn != "" {
		updates[stampColumn] = at
	}
	return r.db.Model(&models.Affiliate{}).Where("id = ?", id).Updates(updates).Error
}

// AddCommissionEarnings advances the aggregate stats atomically when a new
// commission period accrues.
func (r *AffiliateRepository) AddCommissionEarnings(id uint, amount float64) error {
	return r.db.Model(&models.Affiliate{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_commissions_earned": gorm.Expr("total_commissions_earned + ?", amount),
			"months_paid":              gorm.Expr("months_paid + ?", 1),
		}).Error
}

func (r *AffiliateRepository) IncrementReferrals(id uint) error {
	return r.db.Model(&models.Affiliate{}).Where("id = ?", id).
		UpdateColumn("total_referrals", gorm.Expr("total_referrals + ?", 1)).Error
}

func (r *AffiliateRepository) List(status string, limit, offset int) ([]models.Affiliate, error) {
	q := r.db.Model(&models.Affiliate{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.Affiliate
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
