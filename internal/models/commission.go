package models

import (
	"time"

	"gorm.io/gorm"
)

// AffiliateCommission is one accrual ledger line: one row per
// {affiliate, subscription, commission period}. A new row is created per
// billing period while the referred subscription stays paid;
// SubscriptionActive gates whether future periods keep accruing.
type AffiliateCommission struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	AffiliateID    uint `gorm:"not null;index;uniqueIndex:idx_commission_period,priority:1" json:"affiliate_id"`
	SubscriptionID uint `gorm:"not null;index;uniqueIndex:idx_commission_period,priority:2" json:"subscription_id"`
	ReferredUserID uint `gorm:"not null;index" json:"referred_user_id"`

	// CommissionPeriod is "YYYY-MM".
	CommissionPeriod string `gorm:"size:7;not null;uniqueIndex:idx_commission_period,priority:3" json:"commission_period"`

	MonthlySubscriptionAmount float64 `gorm:"type:decimal(10,2);not null" json:"monthly_subscription_amount"`
	CommissionRate            float64 `gorm:"type:decimal(5,2);not null;default:10" json:"commission_rate"`
	MonthlyCommissionAmount   float64 `gorm:"type:decimal(10,2);not null" json:"monthly_commission_amount"`
	Currency                  string  `gorm:"size:3;default:'INR'" json:"currency"`

	Status             string  `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, approved, paid, cancelled, refunded, expired
	SubscriptionActive bool    `gorm:"default:true;index" json:"subscription_active"`
	MinimumPayout      float64 `gorm:"type:decimal(10,2);default:100" json:"minimum_payout"`

	NextCommissionDate *time.Time `gorm:"index" json:"next_commission_date,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"-"`
}

func (AffiliateCommission) TableName() string { return "affiliate_commissions" }
