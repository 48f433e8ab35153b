package middleware

import (
	"net/http"
	"strings"

	"faircore-backend/internal/auth"
	"faircore-backend/internal/payout"

	"github.com/gin-gonic/gin"
)

const (
	ContextAddress = "address"
	ContextClaims  = "claims"
)

func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := authService.Validate(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextAddress, claims.Address)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// RequirePermission gates a route on one of the token's permission strings.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextClaims)
		claims, ok := value.(*auth.Claims)
		if !exists || !ok || !claims.Has(permission) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerAddress returns the authenticated address set by AuthMiddleware.
func CallerAddress(c *gin.Context) string {
	value, _ := c.Get(ContextAddress)
	address, _ := value.(string)
	return address
}

// RateLimitMiddleware charges the given endpoint class per identity.
// Unauthenticated requests are keyed by client IP. The payout route carries
// its sensitive-class charge inside the orchestrator instead, so it is
// mounted with the general class only.
func RateLimitMiddleware(limiter *payout.RateLimiter, class payout.EndpointClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CallerAddress(c)
		if identity == "" {
			identity = c.ClientIP()
		}

		if err := limiter.Allow(identity, class); err != nil {
			retryAfter := retryAfterSeconds(err)
			c.Header("Retry-After", retryAfter)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
