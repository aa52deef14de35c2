package handler

import (
	"errors"
	"net/http"
	"strconv"

	"postpilot/internal/middleware"
	"postpilot/internal/service"

	"github.com/gin-gonic/gin"
)

type AffiliateHandler struct {
	affiliates  *service.AffiliateService
	commissions *service.CommissionService
}

func NewAffiliateHandler(affiliates *service.AffiliateService, commissions *service.CommissionService) *AffiliateHandler {
	return &AffiliateHandler{affiliates: affiliates, commissions: commissions}
}

type affiliateRegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Website  string `json:"website"`
}

// Register creates a pending affiliate application. Pending accounts can log
// in and see their dashboard but earn nothing until an admin approves them.
// POST /affiliates/register
func (h *AffiliateHandler) Register(c *gin.Context) {
	var req affiliateRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.affiliates.Register(req.Name, req.Email, req.Password, req.Website)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             a.ID,
		"email":          a.Email,
		"affiliate_code": a.AffiliateCode,
		"status":         a.Status,
	})
}

type affiliateLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /affiliates/login
func (h *AffiliateHandler) Login(c *gin.Context) {
	var req affiliateLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, a, err := h.affiliates.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, service.ErrAffiliateLockedOut):
			c.JSON(http.StatusForbidden, gin.H{"error": "account is not approved for login"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"affiliate": gin.H{
			"id":             a.ID,
			"name":           a.Name,
			"email":          a.Email,
			"affiliate_code": a.AffiliateCode,
			"status":         a.Status,
		},
	})
}

// Dashboard returns the lifetime totals tracked on the affiliate record.
// GET /affiliates/me
func (h *AffiliateHandler) Dashboard(c *gin.Context) {
	a, err := h.affiliates.Get(middleware.GetPrincipalID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "affiliate not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                       a.ID,
		"name":                     a.Name,
		"email":                    a.Email,
		"affiliate_code":           a.AffiliateCode,
		"status":                   a.Status,
		"is_active":                a.IsActive,
		"total_referrals":          a.TotalReferrals,
		"total_commissions_earned": a.TotalCommissionsEarned,
		"months_paid":              a.MonthsPaid,
	})
}

// GET /affiliates/me/commissions
func (h *AffiliateHandler) ListCommissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.commissions.ListForAffiliate(middleware.GetPrincipalID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list commissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list, "total": len(list)})
}
