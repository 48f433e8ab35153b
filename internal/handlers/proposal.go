package handlers

import (
	"net/http"

	"faircore-backend/internal/middleware"
	"faircore-backend/internal/multisig"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProposalHandler struct {
	multisig *multisig.Service
	logger   *zap.Logger
}

func NewProposalHandler(svc *multisig.Service, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{multisig: svc, logger: logger}
}

// Sign records the caller's signature. Reaching the threshold moves the
// proposal to approved; the timelock still applies before execution.
func (h *ProposalHandler) Sign(c *gin.Context) {
	signer := middleware.CallerAddress(c)
	proposal, err := h.multisig.Sign(c.Request.Context(), c.Param("id"), signer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

func (h *ProposalHandler) Get(c *gin.Context) {
	proposal, err := h.multisig.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposal":   proposal,
		"executable": h.multisig.CanExecute(proposal),
		"signatures": len(proposal.Signatures),
	})
}
