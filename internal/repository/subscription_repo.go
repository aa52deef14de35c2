package repository

import (
	"time"

	"postpilot/internal/models"

	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(s *models.Subscription) error {
	return r.db.Create(s).Error
}

func (r *SubscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) GetByGatewaySubscriptionID(gwID string) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.Where("gateway_subscription_id = ?", gwID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// IncrementUsage bumps one usage counter and the token debit with atomic
// column expressions (no read-modify-write: two concurrent calls both land),
// then recomputes tokens_remaining from the stored columns so the
// remaining == total - used invariant holds after the write.
func (r *SubscriptionRepository) IncrementUsage(id uint, usageColumn string, tokenCost int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Subscription{}).Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				usageColumn:  gorm.Expr(usageColumn+" + ?", 1),
				"tokens_used": gorm.Expr("tokens_used + ?", tokenCost),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Subscription{}).Where("id = ?", id).
			UpdateColumn("tokens_remaining", gorm.Expr("tokens_total - tokens_used")).Error
	})
}

// ResetUsage zeroes every usage counter and the token debit, restores the
// full token balance, and advances the reset date.
func (r *SubscriptionRepository) ResetUsage(id uint, nextReset time.Time) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"used_posts":             0,
			"used_comments":          0,
			"used_ideas":             0,
			"used_templates":         0,
			"used_linkedin_analyses": 0,
			"used_profile_analyses":  0,
			"tokens_used":            0,
			"tokens_remaining":       gorm.Expr("tokens_total"),
			"token_reset_date":       nextReset,
		}).Error
}

// ZeroUsageCounters clears usage for a fresh billing period (webhook-driven)
// without touching the reset date.
func (r *SubscriptionRepository) ZeroUsageCounters(id uint) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"used_posts":             0,
			"used_comments":          0,
			"used_ideas":             0,
			"used_templates":         0,
			"used_linkedin_analyses": 0,
			"used_profile_analyses":  0,
			"tokens_used":            0,
			"tokens_remaining":       gorm.Expr("tokens_total"),
		}).Error
}

// ApplyPlanChange writes the plan together with its derived limits/billing
// fields and syncs users.plan in the same transaction, so there is no window
// where plan and limits disagree or the two records diverge.
func (r *SubscriptionRepository) ApplyPlanChange(id, userID uint, updates map[string]interface{}, userPlan string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("plan", userPlan).Error
	})
}

// SetGatewaySubscriptionID links the record to the provider-side recurring
// subscription. Renewal webhooks resolve the record through this id.
func (r *SubscriptionRepository) SetGatewaySubscriptionID(id uint, gwID string) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		UpdateColumn("gateway_subscription_id", gwID).Error
}

// UpdateStatus sets the status and stamps the given timestamp column.
func (r *SubscriptionRepository) UpdateStatus(id uint, status, stampColumn string, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	if stampColumn != "" {
		updates[stampColumn] = at
	}
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(updates).Error
}

// ListDueForReset returns subscriptions whose monthly reset date has passed,
// for the daily reconciliation sweep.
func (r *SubscriptionRepository) ListDueForReset(now time.Time, limit int) ([]models.Subscription, error) {
	var list []models.Subscription
	err := r.db.Where("token_reset_date <= ?", now).
		Order("token_reset_date ASC").Limit(limit).Find(&list).Error
	return list, err
}
