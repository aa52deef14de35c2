package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription is the single per-user subscription record. One row per user,
// created as a trial at signup, mutated by usage recording and plan changes,
// never hard-deleted.
//
// TokensRemaining is derived: after every write it must equal
// TokensTotal - TokensUsed. The repository recomputes it in the same
// statement batch as any counter mutation.
type Subscription struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	Plan   string `gorm:"size:20;not null;default:'trial'" json:"plan"`          // trial, starter, pro, custom
	Status string `gorm:"size:20;not null;default:'trial';index" json:"status"` // trial, active, expired, cancelled, paused

	TrialStart  time.Time  `gorm:"not null" json:"trial_start"`
	TrialEnd    time.Time  `gorm:"not null" json:"trial_end"`
	PeriodStart *time.Time `json:"period_start"` // set on upgrade
	PeriodEnd   *time.Time `json:"period_end"`

	TokensTotal     int       `gorm:"not null;default:0" json:"tokens_total"`
	TokensUsed      int       `gorm:"not null;default:0" json:"tokens_used"`
	TokensRemaining int       `gorm:"not null;default:0" json:"tokens_remaining"`
	TokenResetDate  time.Time `gorm:"not null;index" json:"token_reset_date"`

	// Limits; -1 means unlimited.
	LimitPosts           int  `gorm:"not null;default:0" json:"limit_posts"`
	LimitComments        int  `gorm:"not null;default:0" json:"limit_comments"`
	LimitIdeas           int  `gorm:"not null;default:0" json:"limit_ideas"`
	LimitProfileAnalyses int  `gorm:"not null;default:0" json:"limit_profile_analyses"`
	TemplatesAccess      bool `gorm:"default:false" json:"templates_access"`
	LinkedInAnalysis     bool `gorm:"column:linkedin_analysis;default:false" json:"linkedin_analysis"`
	PrioritySupport      bool `gorm:"default:false" json:"priority_support"`

	// Usage counters; monotonically increasing, zeroed only by the monthly
	// reset and by billing-period events.
	UsedPosts            int `gorm:"not null;default:0" json:"used_posts"`
	UsedComments         int `gorm:"not null;default:0" json:"used_comments"`
	UsedIdeas            int `gorm:"not null;default:0" json:"used_ideas"`
	UsedTemplates        int `gorm:"not null;default:0" json:"used_templates"`
	UsedLinkedInAnalyses int `gorm:"column:used_linkedin_analyses;not null;default:0" json:"used_linkedin_analyses"`
	UsedProfileAnalyses  int `gorm:"not null;default:0" json:"used_profile_analyses"`

	BillingAmount   float64    `gorm:"type:decimal(10,2);default:0" json:"billing_amount"`
	BillingCurrency string     `gorm:"size:3;default:'USD'" json:"billing_currency"`
	BillingInterval string     `gorm:"size:10;default:'monthly'" json:"billing_interval"` // monthly | yearly
	NextBillingDate *time.Time `json:"next_billing_date"`
	PaymentMethod   string     `gorm:"size:50" json:"payment_method,omitempty"`

	GatewaySubscriptionID *string `gorm:"uniqueIndex;size:64" json:"-"` // nil until the gateway issues one

	LastChargedAt *time.Time `json:"last_charged_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	ResumedAt     *time.Time `json:"resumed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Subscription) TableName() string { return "subscriptions" }
