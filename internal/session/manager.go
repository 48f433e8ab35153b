package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/fairness"
	"faircore-backend/internal/games"
	"faircore-backend/internal/metrics"
	"faircore-backend/internal/models"
	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// TTL is the window a created session stays playable.
	TTL = 10 * time.Minute
	// SweepInterval is how often stale sessions are removed.
	SweepInterval = 5 * time.Minute
)

// Manager owns the game-session lifecycle: creation, single-use execution and
// expiry of unused sessions.
type Manager struct {
	kv     store.KV
	engine *fairness.Engine
	clk    clock.Clock
	logger *zap.Logger
}

func NewManager(kv store.KV, engine *fairness.Engine, clk clock.Clock, logger *zap.Logger) *Manager {
	return &Manager{
		kv:     kv,
		engine: engine,
		clk:    clk,
		logger: logger,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf(store.KeySession, id)
}

// Create validates the bet range for the game type and stores a Created
// session with a 10-minute expiry.
func (m *Manager) Create(ctx context.Context, player string, gameType models.GameType, betAmount float64, clientSeed string, nonce int64) (*models.GameSession, error) {
	if !models.ValidAddress(player) {
		return nil, apperr.Validation("ValidationError", "invalid player address")
	}
	if err := games.ValidateBet(gameType, betAmount); err != nil {
		return nil, err
	}
	// Reject a bad client seed at creation rather than at play time.
	if _, err := m.engine.Seed(clientSeed, nonce); err != nil {
		return nil, err
	}

	now := m.clk.Now()
	sess := &models.GameSession{
		ID:            models.GenerateSessionID(),
		PlayerAddress: player,
		GameType:      gameType,
		BetAmount:     betAmount,
		ClientSeed:    clientSeed,
		Nonce:         nonce,
		State:         models.SessionCreated,
		CreatedAt:     now,
		ExpiresAt:     now.Add(TTL),
	}

	if err := m.save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "failed saving session")
	}
	return sess, nil
}

// Execute transitions a session Created -> Executed exactly once and returns
// the game result with its fairness proof.
func (m *Manager) Execute(ctx context.Context, sessionID string, params games.Params) (*models.GameResult, error) {
	raw, err := m.kv.Get(ctx, sessionKey(sessionID))
	if err == store.ErrNotFound {
		return nil, apperr.Validation("SessionNotFound", "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed loading session")
	}

	var sess models.GameSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errors.Wrap(err, "failed decoding session")
	}

	if m.clk.Now().After(sess.ExpiresAt) {
		return nil, apperr.Validation("SessionExpired", "session has expired")
	}
	if sess.State != models.SessionCreated {
		return nil, apperr.Validation("SessionAlreadyUsed", "session has already been played")
	}

	seed, err := m.engine.Seed(sess.ClientSeed, sess.Nonce)
	if err != nil {
		return nil, err
	}
	result, err := games.ComputeResult(sess.GameType, sess.BetAmount, params, seed)
	if err != nil {
		return nil, err
	}

	// CAS guards the single-use transition against a concurrent Execute on
	// the same session; the loser observes the state flip.
	sess.State = models.SessionExecuted
	updated, err := json.Marshal(&sess)
	if err != nil {
		return nil, errors.Wrap(err, "failed encoding session")
	}
	ok, err := m.kv.CompareAndSwap(ctx, sessionKey(sessionID), raw, updated, TTL+store.TTLSessionGrace)
	if err != nil && err != store.ErrNotFound {
		return nil, errors.Wrap(err, "failed updating session")
	}
	if !ok {
		return nil, apperr.Validation("SessionAlreadyUsed", "session has already been played")
	}

	m.logger.Info("game executed",
		zap.String("session", sess.ID),
		zap.String("game_type", string(sess.GameType)),
		zap.Bool("win", result.IsWin),
		zap.Float64("win_amount", result.WinAmount))
	return result, nil
}

func (m *Manager) Get(ctx context.Context, sessionID string) (*models.GameSession, error) {
	raw, err := m.kv.Get(ctx, sessionKey(sessionID))
	if err == store.ErrNotFound {
		return nil, apperr.Validation("SessionNotFound", "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed loading session")
	}
	var sess models.GameSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errors.Wrap(err, "failed decoding session")
	}
	return &sess, nil
}

func (m *Manager) save(ctx context.Context, sess *models.GameSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, sessionKey(sess.ID), data, TTL+store.TTLSessionGrace)
}

// Sweep deletes sessions past expiry regardless of state, bounding memory.
func (m *Manager) Sweep(ctx context.Context) {
	keys, err := m.kv.Keys(ctx, "session:")
	if err != nil {
		m.logger.Error("session sweep failed listing keys", zap.Error(err))
		return
	}
	now := m.clk.Now()
	removed := 0
	for _, key := range keys {
		raw, err := m.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var sess models.GameSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			continue
		}
		if now.After(sess.ExpiresAt) {
			if err := m.kv.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		metrics.RecordSessionsSwept(removed)
		m.logger.Info("swept expired sessions", zap.Int("removed", removed))
	}
}

// StartSweeper runs Sweep on a fixed interval until the context is done.
// Returns immediately; the sweep runs on its own goroutine.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := m.clk.Ticker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
