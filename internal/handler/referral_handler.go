package handler

import (
	"errors"
	"net/http"
	"strconv"

	"postpilot/internal/middleware"
	"postpilot/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	referrals *service.ReferralService
}

func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// GetMyCode returns the authenticated user's referral code, creating one if
// none is pending yet.
// GET /me/referral-code
func (h *ReferralHandler) GetMyCode(c *gin.Context) {
	ref, err := h.referrals.GetOrCreateCode(middleware.GetPrincipalID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get referral code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":        ref.Code,
		"click_count": ref.ClickCount,
		"status":      ref.Status,
		"created_at":  ref.CreatedAt,
	})
}

// GET /me/referrals
func (h *ReferralHandler) ListMyReferrals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.referrals.ListReferrals(middleware.GetPrincipalID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list referrals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": list, "total": len(list)})
}

type inviteRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

// Invite validates the list and hands dispatch to the mailer.
// POST /me/referrals/invite
func (h *ReferralHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.referrals.InviteEmails(c.Request.Context(), middleware.GetPrincipalID(c), req.Emails); err != nil {
		if errors.Is(err, service.ErrInvalidEmailList) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send invites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// TrackClick is the public referral-link hit counter. Missing codes are 404;
// nothing else may fail the visitor's flow.
// POST /r/:code/click
func (h *ReferralHandler) TrackClick(c *gin.Context) {
	err := h.referrals.TrackClick(c.Param("code"), c.ClientIP(), c.Request.UserAgent(), c.Query("source"))
	if err != nil {
		if errors.Is(err, service.ErrReferralNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown referral code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tracking failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": true})
}
