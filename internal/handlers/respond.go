package handlers

import (
	"fmt"
	"math"
	"net/http"

	"faircore-backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

// statusFor maps categorized errors to HTTP status codes. Specific codes
// take precedence over the category default.
func statusFor(e *apperr.Error) int {
	switch e.Code {
	case "Locked":
		return http.StatusLocked
	case "RateLimited":
		return http.StatusTooManyRequests
	case "SessionNotFound":
		return http.StatusNotFound
	case "SessionExpired", "SessionAlreadyUsed":
		return http.StatusConflict
	case "PoolInsufficient", "EmergencyMode", "CircuitOpen", "SubmissionFailed",
		"PoolInsufficientRefundFailed":
		return http.StatusServiceUnavailable
	}
	switch e.Category {
	case apperr.CategoryValidation:
		return http.StatusBadRequest
	case apperr.CategoryAuthorization:
		return http.StatusForbidden
	case apperr.CategorySecurity:
		return http.StatusForbidden
	case apperr.CategoryNetwork, apperr.CategoryPool, apperr.CategoryPayment:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	body := apperr.Sanitized(err)
	status := http.StatusInternalServerError
	if e, ok := apperr.As(err); ok {
		status = statusFor(e)
		if e.RetryAfter > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(e.RetryAfter.Seconds()))))
		}
	}
	c.JSON(status, gin.H{"error": body})
}
