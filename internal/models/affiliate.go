package models

import (
	"time"

	"gorm.io/gorm"

	"postpilot/internal/domain"
)

// Affiliate is a principal distinct from User, with its own credentials and
// an admin-driven approval workflow. Pending affiliates may log in but do
// not earn; only active ones accrue commission.
type Affiliate struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"size:120;not null" json:"name"`
	Email         string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string `gorm:"size:255;not null" json:"-"`
	AffiliateCode string `gorm:"uniqueIndex;size:20;not null" json:"affiliate_code"`
	Status        string `gorm:"size:20;not null;default:'pending';index" json:"status"` // pending, active, suspended, rejected
	IsActive      bool   `gorm:"default:false" json:"is_active"`
	Website       string `gorm:"size:512" json:"website,omitempty"`
	PayoutUPI     string `gorm:"size:255" json:"-"` // payout destination, used by the payout process

	// Aggregate stats, advanced atomically by the commission engine.
	TotalReferrals         int     `gorm:"not null;default:0" json:"total_referrals"`
	TotalCommissionsEarned float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_commissions_earned"`
	MonthsPaid             int     `gorm:"not null;default:0" json:"months_paid"`

	ApprovalDate *time.Time `json:"approval_date,omitempty"`
	RejectedAt   *time.Time `json:"-"`
	SuspendedAt  *time.Time `json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Affiliate) TableName() string { return "affiliates" }

// CanEarn reports whether new commission may accrue for this affiliate.
func (a *Affiliate) CanEarn() bool {
	return a.Status == domain.AffiliateActive && a.IsActive
}

// CanLogin reports whether the affiliate may authenticate at all. Pending
// affiliates see a gated dashboard; suspended and rejected ones are locked out.
func (a *Affiliate) CanLogin() bool {
	return a.Status == domain.AffiliatePending || a.Status == domain.AffiliateActive
}
