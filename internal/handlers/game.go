package handlers

import (
	"net/http"
	"time"

	"faircore-backend/internal/fairness"
	"faircore-backend/internal/games"
	"faircore-backend/internal/metrics"
	"faircore-backend/internal/middleware"
	"faircore-backend/internal/models"
	"faircore-backend/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fairnessVersion tags results so verifiers know which derivation rules to
// replay.
const fairnessVersion = "1.0"

type GameHandler struct {
	sessions *session.Manager
	engine   *fairness.Engine
	logger   *zap.Logger
}

func NewGameHandler(sessions *session.Manager, engine *fairness.Engine, logger *zap.Logger) *GameHandler {
	return &GameHandler{sessions: sessions, engine: engine, logger: logger}
}

type createSessionRequest struct {
	GameType   models.GameType `json:"game_type" binding:"required"`
	BetAmount  float64         `json:"bet_amount" binding:"required"`
	ClientSeed string          `json:"client_seed" binding:"required"`
	Nonce      int64           `json:"nonce"`
}

// CreateSession opens a single-use game session and returns the server seed
// commitment the player can later verify against.
func (h *GameHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	player := middleware.CallerAddress(c)
	sess, err := h.sessions.Create(c.Request.Context(), player, req.GameType, req.BetAmount, req.ClientSeed, req.Nonce)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": gin.H{
			"id":          sess.ID,
			"game_type":   sess.GameType,
			"bet_amount":  sess.BetAmount,
			"client_seed": sess.ClientSeed,
			"nonce":       sess.Nonce,
			"expires_at":  sess.ExpiresAt,
		},
		"server_seed_hash": h.engine.Commitment(),
	})
}

type playRequest struct {
	SessionID string       `json:"session_id" binding:"required"`
	Params    games.Params `json:"params"`
}

// Play settles a session. Each session settles exactly once.
func (h *GameHandler) Play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.sessions.Execute(c.Request.Context(), req.SessionID, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.RecordGamePlayed(string(result.GameType), result.IsWin)
	c.JSON(http.StatusOK, gin.H{
		"result":    result,
		"timestamp": time.Now().UTC(),
		"version":   fairnessVersion,
	})
}

// Reveal discloses the current server seed and rotates to a fresh one. Every
// session settled under the revealed seed becomes verifiable.
func (h *GameHandler) Reveal(c *gin.Context) {
	revealed, next := h.engine.Reveal()
	c.JSON(http.StatusOK, gin.H{
		"server_seed":           revealed,
		"next_server_seed_hash": next,
	})
}

type verifyRequest struct {
	ServerSeed string          `json:"server_seed" binding:"required"`
	ClientSeed string          `json:"client_seed" binding:"required"`
	Nonce      int64           `json:"nonce"`
	GameType   models.GameType `json:"game_type" binding:"required"`
	BetAmount  float64         `json:"bet_amount" binding:"required"`
	Params     games.Params    `json:"params"`
}

// Verify replays a settled round from its revealed inputs. The response
// carries everything needed to compare against the original result.
func (h *GameHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	seed, err := fairness.Derive(req.ServerSeed, req.ClientSeed, req.Nonce)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := games.ComputeResult(req.GameType, req.BetAmount, req.Params, seed)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_hash": seed.Hash(),
		"result":    result,
	})
}
