package handler

import (
	"errors"
	"net/http"

	"postpilot/internal/domain"
	"postpilot/internal/middleware"
	"postpilot/internal/service"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subs *service.SubscriptionService
}

func NewSubscriptionHandler(subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// GET /me/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, err := h.subs.Get(middleware.GetPrincipalID(c))
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load subscription"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

type actionRequest struct {
	Action string `json:"action" binding:"required"`
}

// Check evaluates whether the caller may perform an action. Denials come
// back 200 with allowed=false so the frontend can render an upgrade prompt.
// POST /me/subscription/check
func (h *SubscriptionHandler) Check(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, known := domain.ParseAction(req.Action)
	if !known {
		// Unknown actions pass through unmetered.
		c.JSON(http.StatusOK, service.CheckResult{Allowed: true})
		return
	}
	result, err := h.subs.CheckAction(middleware.GetPrincipalID(c), action)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecordUsage books one unit of the action; the caller is expected to have
// checked first.
// POST /me/subscription/usage
func (h *SubscriptionHandler) RecordUsage(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, known := domain.ParseAction(req.Action)
	if !known {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}
	if err := h.subs.RecordUsage(middleware.GetPrincipalID(c), action); err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}
