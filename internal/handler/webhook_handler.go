package handler

import (
	"io"
	"net/http"

	"postpilot/internal/service"
	"postpilot/pkg/gateway"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Gateway webhook headers; names are part of the provider contract.
const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

type WebhookHandler struct {
	webhooks *service.WebhookService
	gw       gateway.Gateway
}

func NewWebhookHandler(webhooks *service.WebhookService, gw gateway.Gateway) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, gw: gw}
}

// Handle receives gateway deliveries. The signature is verified against the
// raw body before anything is parsed or processed; a mismatch is a hard 400
// and the event never reaches the processor.
// POST /webhooks/razorpay
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	signature := c.GetHeader(headerWebhookSignature)
	if !h.gw.VerifyWebhookSignature(body, signature) {
		log.Warn().Str("ip", c.ClientIP()).Msg("webhook signature mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	if err := h.webhooks.Process(c.GetHeader(headerWebhookEventID), body); err != nil {
		log.Error().Err(err).Msg("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
