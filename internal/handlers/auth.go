package handlers

import (
	"net/http"

	"faircore-backend/internal/auth"
	"faircore-backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth   *auth.Service
	env    string
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, env string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, env: env, logger: logger}
}

type tokenRequest struct {
	Address string `json:"address" binding:"required"`
}

// Token issues a bearer token for an address. Development only; production
// deployments provision tokens through the identity gateway, which verifies
// wallet ownership before calling auth.Service directly.
func (h *AuthHandler) Token(c *gin.Context) {
	if h.env == "production" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if !models.ValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	token, err := h.auth.Issue(req.Address, []string{auth.PermissionPlay, auth.PermissionPayout, auth.PermissionSign})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
