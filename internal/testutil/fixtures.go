package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"postpilot/internal/domain"
	"postpilot/internal/models"
)

var seq int64

func next() int64 {
	seq++
	return seq
}

// TestUser inserts a user row. Options mutate the struct before insert.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*models.User)) *models.User {
	t.Helper()

	n := next()
	user := &models.User{
		Name:         fmt.Sprintf("Test User %d", n),
		Email:        fmt.Sprintf("test_%d_%d@example.com", time.Now().UnixNano(), n),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456",
		Role:         domain.RoleUser,
		Plan:         domain.PlanTrial,
	}
	for _, opt := range opts {
		opt(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func WithEmail(email string) func(*models.User) {
	return func(u *models.User) { u.Email = email }
}

func WithRole(role string) func(*models.User) {
	return func(u *models.User) { u.Role = role }
}

// TestSubscription inserts a trial subscription for the user, starting now,
// with the canonical trial limits.
func TestSubscription(t *testing.T, db *gorm.DB, userID uint, opts ...func(*models.Subscription)) *models.Subscription {
	t.Helper()

	now := time.Now().UTC()
	limits := domain.LimitsForPlan(domain.PlanTrial)
	sub := &models.Subscription{
		UserID:               userID,
		Plan:                 domain.PlanTrial,
		Status:               domain.StatusTrial,
		TrialStart:           now,
		TrialEnd:             now.Add(domain.TrialDuration),
		TokensTotal:          limits.Tokens,
		TokensRemaining:      limits.Tokens,
		TokenResetDate:       time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC),
		LimitPosts:           limits.PostsPerMonth,
		LimitComments:        limits.CommentsPerMonth,
		LimitIdeas:           limits.IdeasPerMonth,
		LimitProfileAnalyses: limits.ProfileAnalyses,
		TemplatesAccess:      limits.TemplatesAccess,
		LinkedInAnalysis:     limits.LinkedInAnalysis,
		BillingCurrency:      domain.CurrencyUSD,
		BillingInterval:      domain.IntervalMonthly,
	}
	for _, opt := range opts {
		opt(sub)
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return sub
}

func WithPlan(plan, status string) func(*models.Subscription) {
	return func(s *models.Subscription) {
		s.Plan = plan
		s.Status = status
		limits := domain.LimitsForPlan(plan)
		s.LimitPosts = limits.PostsPerMonth
		s.LimitComments = limits.CommentsPerMonth
		s.LimitIdeas = limits.IdeasPerMonth
		s.LimitProfileAnalyses = limits.ProfileAnalyses
		s.TemplatesAccess = limits.TemplatesAccess
		s.LinkedInAnalysis = limits.LinkedInAnalysis
		s.TokensTotal = limits.Tokens
		s.TokensRemaining = limits.Tokens - s.TokensUsed
	}
}

func WithTrialWindow(start, end time.Time) func(*models.Subscription) {
	return func(s *models.Subscription) {
		s.TrialStart = start
		s.TrialEnd = end
	}
}

// TestAffiliate inserts an approved, earning affiliate.
func TestAffiliate(t *testing.T, db *gorm.DB, opts ...func(*models.Affiliate)) *models.Affiliate {
	t.Helper()

	n := next()
	now := time.Now().UTC()
	a := &models.Affiliate{
		Name:          fmt.Sprintf("Affiliate %d", n),
		Email:         fmt.Sprintf("affiliate_%d_%d@example.com", time.Now().UnixNano(), n),
		PasswordHash:  "$2a$10$abcdefghijklmnopqrstuvwxyz123456",
		AffiliateCode: fmt.Sprintf("AFF%d%d", time.Now().UnixNano()%100000, n),
		Status:        domain.AffiliateActive,
		IsActive:      true,
		ApprovalDate:  &now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("Failed to create test affiliate: %v", err)
	}
	return a
}

func WithAffiliateStatus(status string, active bool) func(*models.Affiliate) {
	return func(a *models.Affiliate) {
		a.Status = status
		a.IsActive = active
	}
}

// TestReferral inserts a pending referral code owned by referrerID.
func TestReferral(t *testing.T, db *gorm.DB, referrerID uint, opts ...func(*models.Referral)) *models.Referral {
	t.Helper()

	n := next()
	ref := &models.Referral{
		ReferrerID: referrerID,
		Code:       fmt.Sprintf("REF%d%d", time.Now().UnixNano()%100000, n),
		Status:     domain.ReferralPending,
	}
	for _, opt := range opts {
		opt(ref)
	}
	if err := db.Create(ref).Error; err != nil {
		t.Fatalf("Failed to create test referral: %v", err)
	}
	return ref
}

func WithReferralCode(code string) func(*models.Referral) {
	return func(r *models.Referral) { r.Code = code }
}

func WithReferralStatus(status string) func(*models.Referral) {
	return func(r *models.Referral) { r.Status = status }
}
