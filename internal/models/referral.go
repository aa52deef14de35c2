package models

import (
	"time"

	"gorm.io/gorm"
)

// Referral is one referrer -> (optional) referred-user edge. It is created
// when a user requests a code and fills in the referred side when someone
// signs up through it. pending -> completed -> rewarded; expired reachable
// from pending by the daily sweep.
//
// Affiliate-owned codes share one code across many edges: clicking or
// signing up through an affiliate link lazily creates a fresh edge carrying
// AffiliateID, one per attributed signup. User codes stay one-edge-per-code
// (generation checks for collisions), so Code is indexed but not unique.
type Referral struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	ReferrerID     uint    `gorm:"not null;index" json:"referrer_id"` // zero on affiliate edges
	AffiliateID    *uint   `gorm:"index" json:"affiliate_id,omitempty"`
	Code           string  `gorm:"index;size:20;not null" json:"code"`
	ReferredUserID *uint   `gorm:"index" json:"referred_user_id,omitempty"`
	ReferredEmail  string  `gorm:"size:255" json:"referred_email,omitempty"`
	Status         string  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ClickCount     int     `gorm:"not null;default:0" json:"click_count"`
	Source         string  `gorm:"size:50" json:"source,omitempty"` // link, email, social
	LastClickIP    string  `gorm:"size:45" json:"-"`                // fraud signal
	LastClickUA    string  `gorm:"size:512" json:"-"`
	SignupDate     *time.Time `json:"signup_date,omitempty"`
	RewardedAt     *time.Time `json:"rewarded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Referrer     User  `gorm:"foreignKey:ReferrerID" json:"-"`
	ReferredUser *User `gorm:"foreignKey:ReferredUserID" json:"referred_user,omitempty"`
}

func (Referral) TableName() string { return "referrals" }
