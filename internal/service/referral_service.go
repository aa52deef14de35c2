package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrReferralNotFound = errors.New("referral code not found")
	ErrInvalidEmailList = errors.New("invite list must contain 1 to 10 valid email addresses")
)

// Mailer is the email collaborator. Dispatch is delegated entirely; the
// referral engine only validates the list before handing off.
type Mailer interface {
	SendReferralInvite(ctx context.Context, referrerName, code string, emails []string) error
}

// LogMailer logs invites instead of sending them; the production mailer is
// wired by the outer application.
type LogMailer struct{}

func (LogMailer) SendReferralInvite(ctx context.Context, referrerName, code string, emails []string) error {
	log.Info().Str("referrer", referrerName).Str("code", code).Int("recipients", len(emails)).
		Msg("referral invite dispatched (log mailer)")
	return nil
}

type ReferralService struct {
	referralRepo  *repository.ReferralRepository
	userRepo      *repository.UserRepository
	affiliateRepo *repository.AffiliateRepository
	mailer        Mailer
	validate      *validator.Validate
	codeAttempts  int
	maxInvites    int
	now           func() time.Time
}

func NewReferralService(referralRepo *repository.ReferralRepository, userRepo *repository.UserRepository, affiliateRepo *repository.AffiliateRepository, mailer Mailer, codeAttempts, maxInvites int) *ReferralService {
	if maxInvites <= 0 {
		maxInvites = 10
	}
	return &ReferralService{
		referralRepo:  referralRepo,
		userRepo:      userRepo,
		affiliateRepo: affiliateRepo,
		mailer:        mailer,
		validate:      validator.New(),
		codeAttempts:  codeAttempts,
		maxInvites:    maxInvites,
		now:           time.Now,
	}
}

// GetOrCreateCode returns the user's open referral code, creating one when
// none is pending.
func (s *ReferralService) GetOrCreateCode(userID uint) (*models.Referral, error) {
	if ref, err := s.referralRepo.GetOpenByReferrerID(userID); err == nil {
		return ref, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	code, err := generateUniqueCode(user.Name, s.codeAttempts, s.referralRepo.CodeExists)
	if err != nil {
		return nil, err
	}
	ref := &models.Referral{
		ReferrerID: userID,
		Code:       code,
		Status:     domain.ReferralPending,
	}
	if err := s.referralRepo.Create(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// openEdgeForCode resolves a code to its open referral edge. User codes must
// already have one (created with the code itself). Affiliate codes get an
// edge lazily: the Affiliate row owns the code, and the first click or
// signup through it materialises a pending Referral carrying the affiliate.
func (s *ReferralService) openEdgeForCode(code string) (*models.Referral, error) {
	ref, err := s.referralRepo.GetOpenByCode(code)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	affiliate, err := s.affiliateRepo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	ref = &models.Referral{
		AffiliateID: &affiliate.ID,
		Code:        code,
		Status:      domain.ReferralPending,
	}
	if err := s.referralRepo.Create(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// TrackClick increments the code's click counter. The endpoint is public;
// anything other than a missing code must not fail the visitor's flow.
func (s *ReferralService) TrackClick(code, ip, userAgent, source string) error {
	ref, err := s.openEdgeForCode(code)
	if err != nil {
		return err
	}
	if err := s.referralRepo.IncrementClickCount(ref.ID, ip, userAgent, source); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("click tracking failed")
	}
	return nil
}

// CompleteReferral attributes a signup to a code: the open edge goes
// pending -> completed with the referred side filled in. Affiliate edges
// also bump the affiliate's referral count; the code stays usable because
// the next signup materialises a fresh edge.
func (s *ReferralService) CompleteReferral(code string, referredUser *models.User) error {
	ref, err := s.openEdgeForCode(code)
	if err != nil {
		if errors.Is(err, ErrReferralNotFound) {
			if exists, exErr := s.referralRepo.CodeExists(code); exErr == nil && exists {
				// Code is real but its edge was already consumed;
				// attribution happened elsewhere.
				return nil
			}
		}
		return err
	}
	if ref.AffiliateID == nil && ref.ReferrerID == referredUser.ID {
		return fmt.Errorf("self-referral rejected for user %d", referredUser.ID)
	}
	now := s.now()
	ref.ReferredUserID = &referredUser.ID
	ref.ReferredEmail = referredUser.Email
	ref.Status = domain.ReferralCompleted
	ref.SignupDate = &now
	if err := s.referralRepo.Update(ref); err != nil {
		return err
	}
	if ref.AffiliateID != nil {
		if err := s.affiliateRepo.IncrementReferrals(*ref.AffiliateID); err != nil {
			log.Warn().Err(err).Uint("affiliate_id", *ref.AffiliateID).Msg("referral count update failed")
		}
	}
	return nil
}

// MarkRewarded applies the reward transition exactly once: completed ->
// rewarded. Any other starting state makes it a no-op, so a duplicate reward
// trigger cannot double-apply.
func (s *ReferralService) MarkRewarded(referralID uint) error {
	ref, err := s.referralRepo.GetByID(referralID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReferralNotFound
		}
		return err
	}
	if ref.Status != domain.ReferralCompleted {
		return nil
	}
	now := s.now()
	ref.Status = domain.ReferralRewarded
	ref.RewardedAt = &now
	return s.referralRepo.Update(ref)
}

// InviteEmails validates the list (1-10 well-formed addresses) and hands it
// to the mailer. Mailer failure is logged, never surfaced: email dispatch is
// best effort and must not block the referral flow.
func (s *ReferralService) InviteEmails(ctx context.Context, userID uint, emails []string) error {
	if len(emails) == 0 || len(emails) > s.maxInvites {
		return ErrInvalidEmailList
	}
	for _, e := range emails {
		if err := s.validate.Var(e, "required,email"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidEmailList, e)
		}
	}
	ref, err := s.GetOrCreateCode(userID)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if err := s.mailer.SendReferralInvite(ctx, user.Name, ref.Code, emails); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("invite email dispatch failed")
	}
	return nil
}

// ListReferrals returns the user's referral edges with the referred side
// preloaded.
func (s *ReferralService) ListReferrals(userID uint, limit, offset int) ([]models.Referral, error) {
	return s.referralRepo.ListByReferrerID(userID, limit, offset)
}

// ExpireStalePending is the daily sweep applying the time-based
// pending -> expired transition.
func (s *ReferralService) ExpireStalePending() (int64, error) {
	return s.referralRepo.ExpirePendingBefore(s.now().Add(-domain.ReferralPendingTTL))
}
