package handler

import (
	"errors"
	"net/http"
	"strconv"

	"postpilot/internal/middleware"
	"postpilot/internal/pricing"
	"postpilot/internal/service"
	"postpilot/pkg/gateway"
	"postpilot/pkg/geoip"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	orders   *service.OrderService
	detector *geoip.Detector
}

func NewPaymentHandler(orders *service.OrderService, detector *geoip.Detector) *PaymentHandler {
	return &PaymentHandler{orders: orders, detector: detector}
}

type creditOrderRequest struct {
	Posts    int    `json:"posts"`
	Comments int    `json:"comments"`
	Ideas    int    `json:"ideas"`
	Currency string `json:"currency"`
	Interval string `json:"interval"` // monthly | yearly
}

// POST /payments/orders/credits
func (h *PaymentHandler) CreateCreditOrder(c *gin.Context) {
	var req creditOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.detector.Currency(c.Request.Context(), c.ClientIP(), c.GetHeader("Accept-Language"))
	}
	checkout, err := h.orders.CreateCreditOrder(c.Request.Context(), middleware.GetPrincipalID(c),
		pricing.Bundle{Posts: req.Posts, Comments: req.Comments, Ideas: req.Ideas}, currency, req.Interval)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

type planOrderRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// POST /payments/orders/plan
func (h *PaymentHandler) CreatePlanOrder(c *gin.Context) {
	var req planOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.detector.Currency(c.Request.Context(), c.ClientIP(), c.GetHeader("Accept-Language"))
	}
	checkout, err := h.orders.CreatePlanOrder(c.Request.Context(), middleware.GetPrincipalID(c), req.Plan, currency, req.Interval)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

type planSubscriptionRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// SetupAutopay creates a provider-managed recurring subscription for a
// fixed plan.
// POST /payments/subscriptions
func (h *PaymentHandler) SetupAutopay(c *gin.Context) {
	var req planSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.detector.Currency(c.Request.Context(), c.ClientIP(), c.GetHeader("Accept-Language"))
	}
	autopay, err := h.orders.CreatePlanSubscription(c.Request.Context(), middleware.GetPrincipalID(c), req.Plan, currency, req.Interval)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no subscription"})
			return
		}
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, autopay)
}

// CancelAutopay cancels the recurring subscription on both sides.
// DELETE /payments/subscriptions
func (h *PaymentHandler) CancelAutopay(c *gin.Context) {
	err := h.orders.CancelPlanSubscription(c.Request.Context(), middleware.GetPrincipalID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoGatewaySubscription):
			c.JSON(http.StatusConflict, gin.H{"error": "no recurring subscription to cancel"})
		case errors.Is(err, service.ErrSubscriptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no subscription"})
		default:
			h.writeOrderError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ListPayments returns the caller's payment history.
// GET /payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.orders.ListPayments(middleware.GetPrincipalID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list, "total": len(list)})
}

// GetOrder returns one of the caller's orders with the provider's view.
// GET /payments/orders/:orderID
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	status, err := h.orders.GetOrder(c.Request.Context(), middleware.GetPrincipalID(c), c.Param("orderID"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type verifyRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// Verify is the post-widget completion callback from the frontend.
// POST /payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.orders.VerifyAndCapture(c.Request.Context(), middleware.GetPrincipalID(c),
		req.GatewayOrderID, req.GatewayPaymentID, req.Signature, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

func (h *PaymentHandler) writeOrderError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": verr.Fields})
	case errors.Is(err, gateway.ErrGateway):
		// Generic message only; gateway internals are logged, never echoed.
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment operation failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment operation failed"})
	}
}
