package repository

import (
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) Create(ref *models.Referral) error {
	return r.db.Create(ref).Error
}

func (r *ReferralRepository) GetByID(id uint) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.First(&ref, id).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) GetByCode(code string) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.Where("code = ?", code).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetOpenByCode returns the newest pending edge for a code. Affiliate codes
// can have several edges; only the open one accepts clicks and signups.
func (r *ReferralRepository) GetOpenByCode(code string) (*models.Referral, error) {
	var ref models.Referral
	err := r.db.Where("code = ? AND status = ?", code, domain.ReferralPending).
		Order("created_at DESC").First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) GetOpenByReferrerID(referrerID uint) (*models.Referral, error) {
	var ref models.Referral
	err := r.db.Where("referrer_id = ? AND status = ?", referrerID, domain.ReferralPending).
		Order("created_at DESC").First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) GetByReferredUserID(userID uint) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.Where("referred_user_id = ?", userID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ReferralRepository) CodeExists(code string) (bool, error) {
	var n int64
	err := r.db.Model(&models.Referral{}).Where("code = ?", code).Count(&n).Error
	return n > 0, err
}

// IncrementClickCount bumps the counter atomically and records the latest
// click's fraud signals.
func (r *ReferralRepository) IncrementClickCount(id uint, ip, userAgent, source string) error {
	updates := map[string]interface{}{
		"click_count":   gorm.Expr("click_count + ?", 1),
		"last_click_ip": ip,
		"last_click_ua": userAgent,
	}
	if source != "" {
		updates["source"] = source
	}
	return r.db.Model(&models.Referral{}).Where("id = ?", id).UpdateColumns(updates).Error
}

func (r *ReferralRepository) Update(ref *models.Referral) error {
	return r.db.Save(ref).Error
}

func (r *ReferralRepository) ListByReferrerID(referrerID uint, limit, offset int) ([]models.Referral, error) {
	var list []models.Referral
	err := r.db.Where("referrer_id = ?", referrerID).
		Preload("ReferredUser").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ExpirePendingBefore sweeps stale pending referrals to expired; returns the
// number of rows touched.
func (r *ReferralRepository) ExpirePendingBefore(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Referral{}).
		Where("status = ? AND created_at < ?", domain.ReferralPending, cutoff).
		UpdateColumn("status", domain.ReferralExpired)
	return res.RowsAffected, res.Error
}
