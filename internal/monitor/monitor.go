package monitor

import (
	"context"
	"sync"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/chain"
	"faircore-backend/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	PollInterval = 15 * time.Second

	breakerThreshold = 5
	breakerCooldown  = 5 * time.Minute
)

// BackoffSteps are the fixed delays between submission retries.
var BackoffSteps = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second}

type Options struct {
	From           string
	ConfirmTimeout time.Duration
	MaxAttempts    int
}

// Monitor owns tracked transactions: it submits signed transfers, polls for
// receipts until a terminal status, retries failed submissions with fixed
// backoff and trips a circuit breaker on repeated failure.
type Monitor struct {
	mu          sync.Mutex
	client      chain.Client
	clk         clock.Clock
	logger      *zap.Logger
	breaker     *apperr.Breaker
	node        *snowflake.Node
	opts        Options
	txs         map[string]*models.TrackedTransaction
	nextAttempt map[string]time.Time
}

func New(client chain.Client, clk clock.Clock, logger *zap.Logger, opts Options) (*Monitor, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating snowflake node")
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = len(BackoffSteps)
	}
	return &Monitor{
		client:      client,
		clk:         clk,
		logger:      logger,
		breaker:     apperr.NewBreaker(breakerThreshold, breakerCooldown, clk),
		node:        node,
		opts:        opts,
		txs:         make(map[string]*models.TrackedTransaction),
		nextAttempt: make(map[string]time.Time),
	}, nil
}

// Track registers a pending transaction and returns it.
func (m *Monitor) Track(to string, amount float64) *models.TrackedTransaction {
	tx := &models.TrackedTransaction{
		ID:        m.node.Generate().String(),
		To:        to,
		Amount:    amount,
		Status:    models.TxPending,
		CreatedAt: m.clk.Now(),
	}
	m.mu.Lock()
	m.txs[tx.ID] = tx
	m.mu.Unlock()
	return tx
}

func (m *Monitor) Get(id string) (*models.TrackedTransaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, false
	}
	c := *tx
	return &c, true
}

// Send performs one submission attempt for a tracked transaction. A failed
// attempt leaves the transaction pending; the poll loop retries it on the
// backoff schedule until the attempt cap marks it failed.
func (m *Monitor) Send(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	tx, ok := m.txs[id]
	if !ok {
		m.mu.Unlock()
		return "", apperr.Validation("TransactionNotFound", "unknown tracked transaction")
	}
	if tx.Status != models.TxPending || tx.Hash != "" {
		hash := tx.Hash
		m.mu.Unlock()
		return hash, nil
	}
	to, amount := tx.To, tx.Amount
	m.mu.Unlock()

	if !m.breaker.Allow() {
		return "", apperr.Network("CircuitOpen",
			"transaction submission suspended after repeated failures")
	}

	hash, err := m.client.SendTransaction(ctx, m.opts.From, to, amount)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.breaker.Failure()
		tx.RetryCount++
		if tx.RetryCount >= m.opts.MaxAttempts {
			tx.Status = models.TxFailed
			delete(m.nextAttempt, id)
		} else {
			step := BackoffSteps[min(tx.RetryCount-1, len(BackoffSteps)-1)]
			m.nextAttempt[id] = m.clk.Now().Add(step)
		}
		m.logger.Warn("transaction submission failed",
			zap.String("id", id),
			zap.Int("retry_count", tx.RetryCount),
			zap.Error(err))
		return "", apperr.Payment("SubmissionFailed", "transaction submission failed").WithCause(err)
	}

	m.breaker.Success()
	tx.Hash = hash
	tx.SubmittedAt = m.clk.Now()
	delete(m.nextAttempt, id)
	m.logger.Info("transaction submitted",
		zap.String("id", id),
		zap.String("hash", hash))
	return hash, nil
}

// Abandon withdraws an unsubmitted transaction from the retry schedule so
// the poll loop never submits it. A transaction that already reached the
// chain cannot be abandoned; the receipt decides its fate.
func (m *Monitor) Abandon(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Status != models.TxPending || tx.Hash != "" {
		return false
	}
	tx.Status = models.TxFailed
	delete(m.nextAttempt, id)
	m.logger.Info("transaction abandoned before submission", zap.String("id", id))
	return true
}

// Poll advances every pending transaction one step: retries unsent ones that
// are due and resolves submitted ones against their receipts.
func (m *Monitor) Poll(ctx context.Context) {
	m.mu.Lock()
	var retry, submitted []string
	for id, tx := range m.txs {
		if tx.Status != models.TxPending {
			continue
		}
		if tx.Hash == "" {
			if due, ok := m.nextAttempt[id]; ok && !m.clk.Now().Before(due) {
				retry = append(retry, id)
			}
			continue
		}
		submitted = append(submitted, id)
	}
	m.mu.Unlock()

	for _, id := range retry {
		if _, err := m.Send(ctx, id); err != nil {
			continue
		}
	}
	for _, id := range submitted {
		m.resolve(ctx, id)
	}
}

func (m *Monitor) resolve(ctx context.Context, id string) {
	m.mu.Lock()
	tx, ok := m.txs[id]
	if !ok || tx.Status != models.TxPending || tx.Hash == "" {
		m.mu.Unlock()
		return
	}
	hash := tx.Hash
	submittedAt := tx.SubmittedAt
	m.mu.Unlock()

	receipt, err := m.client.GetTransactionReceipt(ctx, hash)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case errors.Is(err, chain.ErrTxUnknown):
		tx.Status = models.TxDropped
		m.logger.Warn("transaction dropped by node", zap.String("hash", hash))
	case err != nil:
		m.logger.Warn("receipt poll failed", zap.String("hash", hash), zap.Error(err))
	case receipt == nil:
		if m.clk.Now().Sub(submittedAt) > m.opts.ConfirmTimeout {
			tx.Status = models.TxTimeout
			m.logger.Warn("transaction confirmation timed out", zap.String("hash", hash))
		}
	case receipt.Status == chain.ReceiptSuccess:
		tx.Status = models.TxConfirmed
		m.logger.Info("transaction confirmed", zap.String("hash", hash))
	default:
		tx.Status = models.TxFailed
		m.logger.Warn("transaction reverted", zap.String("hash", hash))
	}
}

// BreakerState exposes the submission breaker for metrics.
func (m *Monitor) BreakerState() apperr.BreakerState {
	return m.breaker.State()
}

// StartPolling drives Poll on a fixed interval until the context is done.
// Returns immediately; polling runs on its own goroutine.
func (m *Monitor) StartPolling(ctx context.Context) {
	go func() {
		ticker := m.clk.Ticker(PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Poll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
