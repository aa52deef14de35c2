package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/pricing"
	"postpilot/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrDuplicateSubscription = errors.New("subscription already exists for user")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrUnknownPlan           = errors.New("unknown plan")
)

// CheckResult is the outcome of a quota check. Denials are expected,
// frequent outcomes, so they are data rather than errors: the caller renders
// an upgrade prompt from Reason/Code instead of an error page.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

const (
	CodeTrialExpired      = "TRIAL_EXPIRED"
	CodeSubscriptionEnded = "SUBSCRIPTION_ENDED"
	CodeLimitReached      = "LIMIT_REACHED"
	CodeFeatureLocked     = "FEATURE_LOCKED"
)

type SubscriptionService struct {
	subRepo *repository.SubscriptionRepository
	now     func() time.Time
}

func NewSubscriptionService(subRepo *repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{subRepo: subRepo, now: time.Now}
}

// CreateTrial inserts the one-per-user subscription record with trial
// defaults. The unique user_id index backs the duplicate check.
func (s *SubscriptionService) CreateTrial(userID uint) (*models.Subscription, error) {
	if _, err := s.subRepo.GetByUserID(userID); err == nil {
		return nil, ErrDuplicateSubscription
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	now := s.now()
	limits := domain.LimitsForPlan(domain.PlanTrial)
	sub := &models.Subscription{
		UserID:               userID,
		Plan:                 domain.PlanTrial,
		Status:               domain.StatusTrial,
		TrialStart:           now,
		TrialEnd:             now.Add(domain.TrialDuration),
		TokensTotal:          limits.Tokens,
		TokensRemaining:      limits.Tokens,
		TokenResetDate:       firstOfNextMonth(now),
		LimitPosts:           limits.PostsPerMonth,
		LimitComments:        limits.CommentsPerMonth,
		LimitIdeas:           limits.IdeasPerMonth,
		LimitProfileAnalyses: limits.ProfileAnalyses,
		TemplatesAccess:      limits.TemplatesAccess,
		LinkedInAnalysis:     limits.LinkedInAnalysis,
		PrioritySupport:      limits.PrioritySupport,
		BillingCurrency:      domain.CurrencyUSD,
		BillingInterval:      domain.IntervalMonthly,
	}
	if err := s.subRepo.Create(sub); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSubscription
		}
		return nil, err
	}
	return sub, nil
}

// Get returns the user's subscription after applying the lazy monthly reset,
// so a stale record is reconciled before it is ever read.
func (s *SubscriptionService) Get(userID uint) (*models.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if reset, err := s.ResetMonthlyUsage(sub); err != nil {
		return nil, err
	} else if reset {
		return s.subRepo.GetByUserID(userID)
	}
	return sub, nil
}

// CheckAction evaluates whether the user may perform the action. It mutates
// nothing. Evaluation order: trial expiry, terminal status, then the
// action's counter against its limit (-1 meaning unlimited).
func (s *SubscriptionService) CheckAction(userID uint, action domain.Action) (CheckResult, error) {
	sub, err := s.Get(userID)
	if err != nil {
		return CheckResult{}, err
	}
	return s.check(sub, action), nil
}

func (s *SubscriptionService) check(sub *models.Subscription, action domain.Action) CheckResult {
	now := s.now()
	if sub.Status == domain.StatusTrial && now.After(sub.TrialEnd) {
		return CheckResult{Allowed: false, Reason: "Trial expired", Code: CodeTrialExpired}
	}
	switch sub.Status {
	case domain.StatusExpired:
		return CheckResult{Allowed: false, Reason: "Subscription has expired", Code: CodeSubscriptionEnded}
	case domain.StatusCancelled:
		return CheckResult{Allowed: false, Reason: "Subscription has been cancelled", Code: CodeSubscriptionEnded}
	}

	used, limit := 0, domain.Unlimited
	switch action {
	case domain.ActionGeneratePost:
		used, limit = sub.UsedPosts, sub.LimitPosts
	case domain.ActionGenerateComment:
		used, limit = sub.UsedComments, sub.LimitComments
	case domain.ActionGenerateIdea:
		used, limit = sub.UsedIdeas, sub.LimitIdeas
	case domain.ActionAnalyzeProfile:
		used, limit = sub.UsedProfileAnalyses, sub.LimitProfileAnalyses
	case domain.ActionUseTemplate:
		if !sub.TemplatesAccess {
			return CheckResult{Allowed: false, Reason: "Templates are not included in your plan", Code: CodeFeatureLocked}
		}
		return CheckResult{Allowed: true}
	case domain.ActionAnalyzeLinkedIn:
		if !sub.LinkedInAnalysis {
			return CheckResult{Allowed: false, Reason: "LinkedIn analysis is not included in your plan", Code: CodeFeatureLocked}
		}
		return CheckResult{Allowed: true}
	default:
		// Unknown actions pass through unmetered.
		return CheckResult{Allowed: true}
	}

	if limit == domain.Unlimited {
		return CheckResult{Allowed: true}
	}
	if used >= limit {
		return CheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Monthly limit of %d reached for %s", limit, action),
			Code:    CodeLimitReached,
		}
	}
	return CheckResult{Allowed: true}
}

// RecordUsage increments the action's counter and debits its token cost.
// The caller must have had CheckAction return allowed; RecordUsage does not
// re-check, so concurrent in-flight requests can overshoot by at most their
// own count. Increments are atomic column expressions, so none are lost.
func (s *SubscriptionService) RecordUsage(userID uint, action domain.Action) error {
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	var column string
	switch action {
	case domain.ActionGeneratePost:
		column = "used_posts"
	case domain.ActionGenerateComment:
		column = "used_comments"
	case domain.ActionGenerateIdea:
		column = "used_ideas"
	case domain.ActionAnalyzeProfile:
		column = "used_profile_analyses"
	case domain.ActionUseTemplate:
		column = "used_templates"
	case domain.ActionAnalyzeLinkedIn:
		column = "used_linkedin_analyses"
	default:
		return nil
	}
	return s.subRepo.IncrementUsage(sub.ID, column, action.TokenCost())
}

// ResetMonthlyUsage reconciles a stale subscription: a no-op before the
// reset date; once due it zeroes all usage, restores tokens and advances the
// reset date to the 1st of the following month. Running it twice in a row is
// a no-op the second time.
func (s *SubscriptionService) ResetMonthlyUsage(sub *models.Subscription) (bool, error) {
	now := s.now()
	if now.Before(sub.TokenResetDate) {
		return false, nil
	}
	next := firstOfNextMonth(now)
	if err := s.subRepo.ResetUsage(sub.ID, next); err != nil {
		return false, err
	}
	log.Debug().Uint("subscription_id", sub.ID).Time("next_reset", next).Msg("monthly usage reset")
	return true, nil
}

// UpgradePlan moves the user onto a fixed plan. The new plan's limits and
// billing fields are written in the same update as the plan label, and
// users.plan is synced in the same transaction, so there is no window where
// plan and limits disagree.
func (s *SubscriptionService) UpgradePlan(userID uint, plan, currency, interval string) (*models.Subscription, error) {
	if !domain.IsKnownPlan(plan) || plan == domain.PlanTrial {
		return nil, ErrUnknownPlan
	}
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	limits := domain.LimitsForPlan(plan)
	amount := limits.PriceUSD
	if currency == domain.CurrencyINR {
		amount = limits.PriceINR
	} else {
		currency = domain.CurrencyUSD
	}
	now := s.now()
	end := addInterval(now, interval)
	updates := map[string]interface{}{
		"plan":                   plan,
		"status":                 domain.StatusActive,
		"period_start":           now,
		"period_end":             end,
		"limit_posts":            limits.PostsPerMonth,
		"limit_comments":         limits.CommentsPerMonth,
		"limit_ideas":            limits.IdeasPerMonth,
		"limit_profile_analyses": limits.ProfileAnalyses,
		"templates_access":       limits.TemplatesAccess,
		"linkedin_analysis":      limits.LinkedInAnalysis,
		"priority_support":       limits.PrioritySupport,
		"tokens_total":           limits.Tokens,
		"tokens_remaining":       gorm.Expr("? - tokens_used", limits.Tokens),
		"billing_amount":         amount,
		"billing_currency":       currency,
		"billing_interval":       normalizeInterval(interval),
		"next_billing_date":      end,
	}
	if err := s.subRepo.ApplyPlanChange(sub.ID, userID, updates, plan); err != nil {
		return nil, err
	}
	return s.subRepo.GetByUserID(userID)
}

// UpgradeToCustomBundle moves the user onto a purchased credit bundle. The
// bundle's counts become the monthly limits; everything else mirrors
// UpgradePlan.
func (s *SubscriptionService) UpgradeToCustomBundle(userID uint, bundle pricing.Bundle, amount float64, currency, interval string) (*models.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	now := s.now()
	end := addInterval(now, interval)
	tokens := bundle.Posts*domain.ActionGeneratePost.TokenCost() +
		bundle.Comments*domain.ActionGenerateComment.TokenCost() +
		bundle.Ideas*domain.ActionGenerateIdea.TokenCost()
	updates := map[string]interface{}{
		"plan":                   domain.PlanCustom,
		"status":                 domain.StatusActive,
		"period_start":           now,
		"period_end":             end,
		"limit_posts":            bundle.Posts,
		"limit_comments":         bundle.Comments,
		"limit_ideas":            bundle.Ideas,
		"limit_profile_analyses": domain.LimitsForPlan(domain.PlanStarter).ProfileAnalyses,
		"templates_access":       true,
		"linkedin_analysis":      true,
		"tokens_total":           tokens,
		"tokens_remaining":       gorm.Expr("? - tokens_used", tokens),
		"billing_amount":         amount,
		"billing_currency":       currency,
		"billing_interval":       normalizeInterval(interval),
		"next_billing_date":      end,
	}
	if err := s.subRepo.ApplyPlanChange(sub.ID, userID, updates, domain.PlanCustom); err != nil {
		return nil, err
	}
	return s.subRepo.GetByUserID(userID)
}

// ResetDueSubscriptions is the daily sweep counterpart of the lazy reset, so
// dashboards never read counters a lazy path hasn't touched yet.
func (s *SubscriptionService) ResetDueSubscriptions(batch int) (int, error) {
	due, err := s.subRepo.ListDueForReset(s.now(), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range due {
		if _, err := s.ResetMonthlyUsage(&due[i]); err != nil {
			log.Error().Err(err).Uint("subscription_id", due[i].ID).Msg("sweep reset failed")
			continue
		}
		n++
	}
	return n, nil
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

func addInterval(t time.Time, interval string) time.Time {
	if normalizeInterval(interval) == domain.IntervalYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

func normalizeInterval(interval string) string {
	if interval == domain.IntervalYearly {
		return domain.IntervalYearly
	}
	return domain.IntervalMonthly
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
