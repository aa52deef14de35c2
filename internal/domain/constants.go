package domain

import "time"

const (
	PlanTrial   = "trial"
	PlanStarter = "starter"
	PlanPro     = "pro"
	PlanCustom  = "custom"
)

const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
	StatusPaused    = "paused"
)

const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

// Unlimited is the limit sentinel meaning "no cap" for a usage dimension.
const Unlimited = -1

const TrialDuration = 7 * 24 * time.Hour

// Action is the closed set of meterable things a user can do. Free-form
// strings from the outside go through ParseAction; everything past that
// boundary switches exhaustively on Action.
type Action string

const (
	ActionGeneratePost    Action = "generate_post"
	ActionGenerateComment Action = "generate_comment"
	ActionGenerateIdea    Action = "generate_idea"
	ActionAnalyzeProfile  Action = "analyze_profile"
	ActionUseTemplate     Action = "use_template"
	ActionAnalyzeLinkedIn Action = "analyze_linkedin"
)

// ParseAction maps an external action string to an Action. Unknown strings
// return ok=false; callers treat those as pass-through (allowed, unmetered).
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionGeneratePost, ActionGenerateComment, ActionGenerateIdea,
		ActionAnalyzeProfile, ActionUseTemplate, ActionAnalyzeLinkedIn:
		return Action(s), true
	}
	return "", false
}

// TokenCost is the flat token debit per action.
func (a Action) TokenCost() int {
	switch a {
	case ActionGeneratePost:
		return 5
	case ActionGenerateComment:
		return 3
	case ActionGenerateIdea:
		return 1
	case ActionAnalyzeProfile:
		return 10
	case ActionUseTemplate:
		return 2
	case ActionAnalyzeLinkedIn:
		return 8
	}
	return 0
}

// PlanLimits are the per-plan monthly allowances. Unlimited (-1) disables
// the cap for that dimension.
type PlanLimits struct {
	PostsPerMonth    int
	CommentsPerMonth int
	IdeasPerMonth    int
	ProfileAnalyses  int
	TemplatesAccess  bool
	LinkedInAnalysis bool
	PrioritySupport  bool
	Tokens           int
	PriceUSD         float64
	PriceINR         float64
}

// planLimits is the single source of truth for plan defaults. The trial row
// is the canonical one; older migrations carried divergent trial values and
// those are treated as historical bugs.
var planLimits = map[string]PlanLimits{
	PlanTrial: {
		PostsPerMonth:    25,
		CommentsPerMonth: 25,
		IdeasPerMonth:    50,
		ProfileAnalyses:  3,
		TemplatesAccess:  true,
		Tokens:           50,
	},
	PlanStarter: {
		PostsPerMonth:    75,
		CommentsPerMonth: 100,
		IdeasPerMonth:    150,
		ProfileAnalyses:  3,
		TemplatesAccess:  true,
		LinkedInAnalysis: true,
		Tokens:           500,
		PriceUSD:         12,
		PriceINR:         999,
	},
	PlanPro: {
		PostsPerMonth:    200,
		CommentsPerMonth: 400,
		IdeasPerMonth:    Unlimited,
		ProfileAnalyses:  10,
		TemplatesAccess:  true,
		LinkedInAnalysis: true,
		PrioritySupport:  true,
		Tokens:           2000,
		PriceUSD:         24,
		PriceINR:         1999,
	},
}

// LimitsForPlan returns the limit set for a plan label. Unknown plans
// (including "custom", whose limits come from the purchased bundle) fall
// back to trial limits so a bad label never grants unlimited access.
func LimitsForPlan(plan string) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanTrial]
}

// IsKnownPlan reports whether plan is one of the fixed purchasable labels.
func IsKnownPlan(plan string) bool {
	_, ok := planLimits[plan]
	return ok
}

const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
	ReferralRewarded  = "rewarded"
	ReferralExpired   = "expired"
)

// Pending referrals older than this are swept to expired.
const ReferralPendingTTL = 30 * 24 * time.Hour

const (
	AffiliatePending   = "pending"
	AffiliateActive    = "active"
	AffiliateSuspended = "suspended"
	AffiliateRejected  = "rejected"
)

// CommissionRate is the flat affiliate commission percentage.
const CommissionRate = 10.0

// MinimumPayoutINR is stored on every commission row; enforcement of the
// threshold happens in the payout process, not in the accrual engine.
const MinimumPayoutINR = 100.0

const (
	CommissionPending   = "pending"
	CommissionApproved  = "approved"
	CommissionPaid      = "paid"
	CommissionCancelled = "cancelled"
	CommissionRefunded  = "refunded"
	CommissionExpired   = "expired"
)

const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

// PaymentStatusRank orders payment statuses; a payment status may only move
// to a higher rank, never regress.
func PaymentStatusRank(status string) int {
	switch status {
	case PaymentCreated:
		return 0
	case PaymentAuthorized:
		return 1
	case PaymentCaptured:
		return 2
	case PaymentFailed:
		return 3
	case PaymentRefunded:
		return 4
	}
	return -1
}

const (
	RoleUser      = "USER"
	RoleAdmin     = "ADMIN"
	RoleAffiliate = "AFFILIATE"
)
