package service

import (
	"errors"
	"time"

	"postpilot/config"
	"postpilot/internal/auth"
	"postpilot/internal/domain"
	"postpilot/internal/models"
	"postpilot/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAffiliateNotFound  = errors.New("affiliate not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAffiliateLockedOut = errors.New("affiliate account is not allowed to log in")
	ErrInvalidTransition  = errors.New("invalid affiliate status transition")
)

type AffiliateService struct {
	affiliateRepo *repository.AffiliateRepository
	auditRepo     *repository.AuditLogRepository
	jwtCfg        *config.JWTConfig
	codeAttempts  int
	now           func() time.Time
}

func NewAffiliateService(affiliateRepo *repository.AffiliateRepository, auditRepo *repository.AuditLogRepository, jwtCfg *config.JWTConfig, codeAttempts int) *AffiliateService {
	return &AffiliateService{
		affiliateRepo: affiliateRepo,
		auditRepo:     auditRepo,
		jwtCfg:        jwtCfg,
		codeAttempts:  codeAttempts,
		now:           time.Now,
	}
}

// Register creates a pending affiliate with a name-prefixed code. Pending
// affiliates can log in and see their dashboard but do not earn until an
// admin approves them.
func (s *AffiliateService) Register(name, email, password, website string) (*models.Affiliate, error) {
	if _, err := s.affiliateRepo.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := generateUniqueCode(name, s.codeAttempts, s.affiliateRepo.CodeExists)
	if err != nil {
		return nil, err
	}
	a := &models.Affiliate{
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		AffiliateCode: code,
		Status:        domain.AffiliatePending,
		Website:       website,
	}
	if err := s.affiliateRepo.Create(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Login authenticates an affiliate and issues an access token. Suspended and
// rejected affiliates are locked out entirely; pending ones get a token but
// are gated from earning by status checks downstream.
func (s *AffiliateService) Login(email, password string) (string, *models.Affiliate, error) {
	a, err := s.affiliateRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !a.CanLogin() {
		return "", nil, ErrAffiliateLockedOut
	}
	token, err := auth.GenerateAccessToken(s.jwtCfg, a.ID, a.Email, domain.RoleAffiliate)
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

func (s *AffiliateService) Get(id uint) (*models.Affiliate, error) {
	a, err := s.affiliateRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	return a, nil
}

// Transition applies the admin approval workflow:
// pending -> active | rejected, active <-> suspended. is_active follows
// status==active in lockstep; approval stamps the approval date.
func (s *AffiliateService) Transition(id uint, target string, adminID uint) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	now := s.now()
	var stamp string
	switch {
	case a.Status == domain.AffiliatePending && target == domain.AffiliateActive:
		stamp = "approval_date"
	case a.Status == domain.AffiliatePending && target == domain.AffiliateRejected:
		stamp = "rejected_at"
	case a.Status == domain.AffiliateActive && target == domain.AffiliateSuspended:
		stamp = "suspended_at"
	case a.Status == domain.AffiliateSuspended && target == domain.AffiliateActive:
		stamp = ""
	default:
		return ErrInvalidTransition
	}
	if err := s.affiliateRepo.SetStatus(id, target, target == domain.AffiliateActive, stamp, now); err != nil {
		return err
	}
	_ = s.auditRepo.Create(&models.AuditLog{
		UserID:     &adminID,
		Action:     "affiliate_status_" + target,
		Resource:   "affiliate",
		ResourceID: a.AffiliateCode,
	})
	return nil
}

// ListAffiliates is the admin console listing, optionally filtered by status.
func (s *AffiliateService) ListAffiliates(status string, limit, offset int) ([]models.Affiliate, error) {
	return s.affiliateRepo.List(status, limit, offset)
}
