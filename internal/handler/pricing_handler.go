package handler

import (
	"net/http"

	"postpilot/internal/pricing"
	"postpilot/pkg/geoip"

	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	calc     *pricing.Calculator
	detector *geoip.Detector
}

func NewPricingHandler(calc *pricing.Calculator, detector *geoip.Detector) *PricingHandler {
	return &PricingHandler{calc: calc, detector: detector}
}

type quoteRequest struct {
	Posts    int    `json:"posts"`
	Comments int    `json:"comments"`
	Ideas    int    `json:"ideas"`
	Currency string `json:"currency"` // optional; detected from the request when empty
}

// Quote prices a credit bundle. When no currency is given it is detected
// from the caller's IP / Accept-Language, falling back to USD.
// POST /pricing/quote
func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bundle := pricing.Bundle{Posts: req.Posts, Comments: req.Comments, Ideas: req.Ideas}
	if v := pricing.Validate(bundle); !v.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit bundle", "fields": v.Errors})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = h.detector.Currency(c.Request.Context(), c.ClientIP(), c.GetHeader("Accept-Language"))
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":     h.calc.PlanName(bundle),
		"amount":   h.calc.Price(bundle, currency),
		"currency": currency,
	})
}
