package handler

import (
	"errors"
	"net/http"
	"strconv"

	"postpilot/internal/middleware"
	"postpilot/internal/repository"
	"postpilot/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the back-office surface: affiliate review and the
// audit trail. Every route behind it requires the admin role.
type AdminHandler struct {
	affiliates     *service.AffiliateService
	commissionRepo *repository.CommissionRepository
	auditRepo      *repository.AuditLogRepository
}

func NewAdminHandler(
	affiliates *service.AffiliateService,
	commissionRepo *repository.CommissionRepository,
	auditRepo *repository.AuditLogRepository,
) *AdminHandler {
	return &AdminHandler{
		affiliates:     affiliates,
		commissionRepo: commissionRepo,
		auditRepo:      auditRepo,
	}
}

// GET /admin/affiliates?status=pending
func (h *AdminHandler) ListAffiliates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.affiliates.ListAffiliates(c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list affiliates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"affiliates": list, "total": len(list)})
}

type affiliateTransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// Transition moves an affiliate between review states. Invalid moves (for
// example re-approving a rejected account) are rejected with 409.
// PUT /admin/affiliates/:id/status
func (h *AdminHandler) TransitionAffiliate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate id"})
		return
	}
	var req affiliateTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.affiliates.Transition(uint(id), req.Status, middleware.GetPrincipalID(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrAffiliateNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "affiliate not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// GET /admin/commissions?status=pending
func (h *AdminHandler) ListCommissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.commissionRepo.List(c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list commissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list, "total": len(list)})
}

// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.auditRepo.ListRecent(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": list, "total": len(list)})
}
