package monitor_test

import (
	"context"
	"testing"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/chain"
	"faircore-backend/internal/models"
	"faircore-backend/internal/monitor"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const poolWallet = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const playerAddr = "0x742d35cc6634c0532925a3b844bc454e4438f44e"

func newMonitor(t *testing.T, client chain.Client) (*monitor.Monitor, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	m, err := monitor.New(client, clk, zap.NewNop(), monitor.Options{
		From:           poolWallet,
		ConfirmTimeout: 5 * time.Minute,
		MaxAttempts:    4,
	})
	require.NoError(t, err)
	return m, clk
}

func TestSendAndConfirm(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	m, _ := newMonitor(t, mock)

	tx := m.Track(playerAddr, 19.8)
	assert.Equal(t, models.TxPending, tx.Status)

	hash, err := m.Send(ctx, tx.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	m.Poll(ctx)

	got, ok := m.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, models.TxConfirmed, got.Status)
}

func TestRevertedTransactionFails(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	mock.RevertNext = true
	m, _ := newMonitor(t, mock)

	tx := m.Track(playerAddr, 10)
	_, err := m.Send(ctx, tx.ID)
	require.NoError(t, err)

	m.Poll(ctx)

	got, _ := m.Get(tx.ID)
	assert.Equal(t, models.TxFailed, got.Status)
}

func TestDroppedTransaction(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	m, _ := newMonitor(t, mock)

	tx := m.Track(playerAddr, 10)
	hash, err := m.Send(ctx, tx.ID)
	require.NoError(t, err)

	mock.Forget(hash)
	m.Poll(ctx)

	got, _ := m.Get(tx.ID)
	assert.Equal(t, models.TxDropped, got.Status)
}

func TestConfirmationTimeout(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	m, clk := newMonitor(t, mock)

	tx := m.Track(playerAddr, 10)
	hash, err := m.Send(ctx, tx.ID)
	require.NoError(t, err)

	mock.Withhold(hash)

	m.Poll(ctx)
	got, _ := m.Get(tx.ID)
	assert.Equal(t, models.TxPending, got.Status, "still inside the window")

	clk.Add(6 * time.Minute)
	m.Poll(ctx)
	got, _ = m.Get(tx.ID)
	assert.Equal(t, models.TxTimeout, got.Status)
}

func TestSubmissionRetryBackoff(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	mock.SendErr = errors.New("rpc unreachable")
	m, clk := newMonitor(t, mock)

	tx := m.Track(playerAddr, 10)
	_, err := m.Send(ctx, tx.ID)
	require.Error(t, err)

	got, _ := m.Get(tx.ID)
	assert.Equal(t, models.TxPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	// Back up before the 5s step: poll must not retry yet.
	m.Poll(ctx)
	got, _ = m.Get(tx.ID)
	assert.Equal(t, 1, got.RetryCount)

	// Heal the rpc and advance past the first backoff step.
	mock.SendErr = nil
	clk.Add(5 * time.Second)
	m.Poll(ctx)

	got, _ = m.Get(tx.ID)
	assert.NotEmpty(t, got.Hash, "retry picked up after backoff")
}

func TestSubmissionAttemptCap(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	mock.SendErr = errors.New("rpc unreachable")
	m, clk := newMonitor(t, mock)

	tx := m.Track(playerAddr, 10)
	_, err := m.Send(ctx, tx.ID)
	require.Error(t, err)

	// Walk through the remaining backoff steps; every retry fails.
	for i := 0; i < 3; i++ {
		clk.Add(time.Minute)
		m.Poll(ctx)
	}

	got, _ := m.Get(tx.ID)
	assert.Equal(t, models.TxFailed, got.Status)
	assert.Equal(t, 4, got.RetryCount)
}

func TestAbandonStopsRetry(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	mock.SendErr = errors.New("rpc unavailable")
	m, clk := newMonitor(t, mock)

	tx := m.Track(playerAddr, 25)
	_, err := m.Send(ctx, tx.ID)
	require.Error(t, err)

	require.True(t, m.Abandon(tx.ID))

	// Retry window passes and the chain heals; the abandoned transaction
	// must never be submitted.
	mock.SendErr = nil
	clk.Add(monitor.PollInterval)
	m.Poll(ctx)

	assert.Empty(t, mock.Sent())
	got, ok := m.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, models.TxFailed, got.Status)
}

func TestAbandonRefusesSubmitted(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	m, _ := newMonitor(t, mock)

	tx := m.Track(playerAddr, 25)
	hash, err := m.Send(ctx, tx.ID)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// Once on the chain the receipt decides; abandoning is refused.
	assert.False(t, m.Abandon(tx.ID))
	got, ok := m.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, models.TxPending, got.Status)
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	mock := chain.NewMock()
	mock.SendErr = errors.New("rpc unreachable")
	m, clk := newMonitor(t, mock)

	for i := 0; i < 5; i++ {
		tx := m.Track(playerAddr, 1)
		_, err := m.Send(ctx, tx.ID)
		require.Error(t, err)
	}
	assert.Equal(t, apperr.BreakerOpen, m.BreakerState())

	// While open, new submissions fail fast with a network error.
	tx := m.Track(playerAddr, 1)
	_, err := m.Send(ctx, tx.ID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "CircuitOpen", appErr.Code)

	// After the cool-down a healed dependency closes the breaker again.
	mock.SendErr = nil
	clk.Add(5 * time.Minute)
	_, err = m.Send(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, apperr.BreakerClosed, m.BreakerState())
}
