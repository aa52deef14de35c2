package middleware

import (
	"net/http"
	"strings"

	"postpilot/config"
	"postpilot/internal/auth"
	"postpilot/internal/domain"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the JWT and sets principal id, email and role in
// the gin context. The core trusts these values unconditionally downstream.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("principal_id", claims.PrincipalID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminRequired checks that the authenticated principal has the ADMIN role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role.(string) != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// AffiliateRequired checks that the authenticated principal is an affiliate.
func AffiliateRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role.(string) != domain.RoleAffiliate {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "affiliate access required"})
			return
		}
		c.Next()
	}
}

// GetPrincipalID returns the authenticated principal ID from context (must
// be used after AuthRequired).
func GetPrincipalID(c *gin.Context) uint {
	v, _ := c.Get("principal_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}
