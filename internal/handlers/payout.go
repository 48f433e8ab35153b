package handlers

import (
	"net/http"

	"faircore-backend/internal/metrics"
	"faircore-backend/internal/middleware"
	"faircore-backend/internal/models"
	"faircore-backend/internal/payout"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	orch   *payout.Orchestrator
	logger *zap.Logger
}

func NewPayoutHandler(orch *payout.Orchestrator, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{orch: orch, logger: logger}
}

// Create runs one payout request to a terminal outcome.
//
//	200 executed or refunded
//	202 escalated to multi-sig approval
//	409 transaction id seen before; the stored outcome is returned
//	423 another payout for the address is in flight
//	429 rate limited
//	503 pool, payment or security failure
func (h *PayoutHandler) Create(c *gin.Context) {
	var req models.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	caller := middleware.CallerAddress(c)
	out, err := h.orch.Process(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.RecordPayout(string(out.Record.Status), out.Record.Amount)

	body := gin.H{
		"transaction_id": out.Record.TransactionID,
		"status":         out.Record.Status,
	}
	if out.TransactionHash != "" {
		body["tx_hash"] = out.TransactionHash
	}
	if out.MonitoringID != "" {
		body["monitoring_id"] = out.MonitoringID
	}
	if out.ProposalID != "" {
		body["proposal_id"] = out.ProposalID
	}
	if out.Refunded {
		body["refunded"] = true
	}

	switch {
	case out.AlreadyProcessed:
		c.JSON(http.StatusConflict, body)
	case out.Record.Status == models.PayoutEscalated:
		body["requires_approval"] = true
		c.JSON(http.StatusAccepted, body)
	default:
		c.JSON(http.StatusOK, body)
	}
}

// History lists the caller's payout records.
func (h *PayoutHandler) History(c *gin.Context) {
	caller := middleware.CallerAddress(c)
	records, err := h.orch.Records().ByAddress(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*models.PayoutRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"payouts": records})
}
