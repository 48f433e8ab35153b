package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/chain"
	"faircore-backend/internal/config"
	"faircore-backend/internal/events"
	"faircore-backend/internal/models"
	"faircore-backend/internal/monitor"
	"faircore-backend/internal/multisig"
	"faircore-backend/internal/pool"
	"faircore-backend/internal/security"
	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPlayer = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	testSigner = "0x1111111111111111111111111111111111111111"
	testWallet = "0x9999999999999999999999999999999999999999"
)

type fixture struct {
	orch   *Orchestrator
	ledger *pool.Ledger
	mock   *chain.Mock
	kv     *store.Memory
	clk    *clock.Mock
	audit  *security.StaticChecker
	mon    *monitor.Monitor
}

func newFixture(t *testing.T, balance float64) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	kv := store.NewMemory(clk)
	logger := zap.NewNop()
	bus := events.NewBus()

	ledger := pool.NewLedger(kv, clk, logger, bus, pool.Options{
		InitialBalance:     balance,
		ReserveRatio:       0.2,
		MaxDailyWithdrawal: 100000,
		MaxSingleTx:        50000,
	})
	require.NoError(t, ledger.Init(context.Background()))

	mock := chain.NewMock()
	mon, err := monitor.New(mock, clk, logger, monitor.Options{From: testWallet})
	require.NoError(t, err)

	audit := &security.StaticChecker{}
	cfg := config.Payouts{
		MinPayout:          0.0001,
		MaxPayout:          10000,
		GasBuffer:          1,
		MultisigThreshold:  1000,
		RequiredSignatures: 2,
		Timelock:           time.Hour,
		LockTTL:            30 * time.Second,
	}
	orch := NewOrchestrator(cfg, Deps{
		Records:  NewRecords(kv),
		Locks:    NewLocks(kv, cfg.LockTTL),
		Limiter:  NewRateLimiter(clk, LimitRule{Limit: 1000, Window: time.Minute}, LimitRule{Limit: 1000, Window: time.Minute}),
		Ledger:   ledger,
		Multisig: multisig.NewService(kv, clk, logger, bus, []string{testSigner}),
		Monitor:  mon,
		Audit:    audit,
		Bus:      bus,
		Clock:    clk,
		Logger:   logger,
	})
	return &fixture{orch: orch, ledger: ledger, mock: mock, kv: kv, clk: clk, audit: audit, mon: mon}
}

func payoutReq(txID string, amount float64) *models.PayoutRequest {
	return &models.PayoutRequest{
		PlayerAddress: testPlayer,
		Amount:        amount,
		BetAmount:     amount / 2,
		GameType:      models.GameTypeDice,
		TransactionID: txID,
	}
}

func TestProcessExecutesPayout(t *testing.T) {
	f := newFixture(t, 1000)
	out, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-1", 19.8))
	require.NoError(t, err)
	require.Equal(t, models.PayoutExecuted, out.Record.Status)
	require.NotEmpty(t, out.TransactionHash)
	require.NotEmpty(t, out.MonitoringID)
	require.False(t, out.AlreadyProcessed)

	state, err := f.ledger.State(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1000-19.8, state.Balance, 1e-9)
}

func TestProcessDuplicateReplaysOutcome(t *testing.T) {
	f := newFixture(t, 1000)
	first, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-dup", 50))
	require.NoError(t, err)

	second, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-dup", 50))
	require.NoError(t, err)
	require.True(t, second.AlreadyProcessed)
	require.Equal(t, first.TransactionHash, second.TransactionHash)

	state, err := f.ledger.State(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 950, state.Balance, 1e-9)
	require.Len(t, f.mock.Sent(), 1)
}

func TestProcessRejectsForeignAddress(t *testing.T) {
	f := newFixture(t, 1000)
	_, err := f.orch.Process(context.Background(), "0x0000000000000000000000000000000000000001", payoutReq("tx-auth", 10))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CategoryAuthorization, appErr.Category)
}

func TestProcessRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, 1000)
	req := payoutReq("tx-bad", 10)
	req.PlayerAddress = "not-an-address"
	_, err := f.orch.Process(context.Background(), "not-an-address", req)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CategoryValidation, appErr.Category)

	_, err = f.orch.Process(context.Background(), testPlayer, payoutReq("tx-big", 999999))
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CategoryValidation, appErr.Category)

	req = payoutReq("tx-game", 10)
	req.GameType = "roulette"
	_, err = f.orch.Process(context.Background(), testPlayer, req)
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.CategoryValidation, appErr.Category)
}

func TestProcessEscalatesAboveThreshold(t *testing.T) {
	f := newFixture(t, 100000)
	out, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-large", 5000))
	require.NoError(t, err)
	require.Equal(t, models.PayoutEscalated, out.Record.Status)
	require.NotEmpty(t, out.ProposalID)
	require.Empty(t, out.TransactionHash)

	// No funds move until the proposal is approved and executed.
	state, err := f.ledger.State(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 100000, state.Balance, 1e-9)
	require.Empty(t, f.mock.Sent())
}

func TestProcessRefundsWhenPoolShort(t *testing.T) {
	f := newFixture(t, 15)
	req := payoutReq("tx-refund", 50)
	req.BetAmount = 10
	out, err := f.orch.Process(context.Background(), testPlayer, req)
	require.NoError(t, err)
	require.True(t, out.Refunded)
	require.Equal(t, models.PayoutRefunded, out.Record.Status)
	require.NotEmpty(t, out.TransactionHash)

	state, err := f.ledger.State(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 5, state.Balance, 1e-9)
}

func TestProcessGasBufferCountsAgainstBalance(t *testing.T) {
	// Balance 11, amount 10, gas buffer 1: exactly enough, executes.
	f := newFixture(t, 11)
	out, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-exact", 10))
	require.NoError(t, err)
	require.Equal(t, models.PayoutExecuted, out.Record.Status)

	// Balance 10.5, amount 10: buffer pushes it over, refunds instead.
	f2 := newFixture(t, 10.5)
	req := payoutReq("tx-buffer", 10)
	req.BetAmount = 5
	out2, err := f2.orch.Process(context.Background(), testPlayer, req)
	require.NoError(t, err)
	require.True(t, out2.Refunded)
}

func TestProcessRefundFailureCarriesSupportRef(t *testing.T) {
	f := newFixture(t, 15)
	f.mock.SendErr = errors.New("rpc unavailable")
	req := payoutReq("tx-refund-fail", 50)
	req.BetAmount = 10

	_, err := f.orch.Process(context.Background(), testPlayer, req)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "PoolInsufficientRefundFailed", appErr.Code)
	require.NotEmpty(t, appErr.SupportRef)

	// The debit was rolled back and the record is terminal.
	state, serr := f.ledger.State(context.Background())
	require.NoError(t, serr)
	require.InDelta(t, 15, state.Balance, 1e-9)
	rec, rerr := f.orch.Records().Get(context.Background(), "tx-refund-fail")
	require.NoError(t, rerr)
	require.Equal(t, models.PayoutFailed, rec.Status)
	require.Equal(t, "PoolInsufficientRefundFailed", rec.FailureCode)
}

func TestProcessBlocksDuringCriticalAudit(t *testing.T) {
	f := newFixture(t, 1000)
	f.audit.Status = security.StatusCritical

	_, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-sec", 10))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "SecurityBlocked", appErr.Code)

	// The claim is released, so the same id succeeds once the audit clears.
	f.audit.Status = security.StatusNormal
	out, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-sec", 10))
	require.NoError(t, err)
	require.Equal(t, models.PayoutExecuted, out.Record.Status)
	require.False(t, out.AlreadyProcessed)
}

func TestProcessSendFailureRollsBackDebit(t *testing.T) {
	f := newFixture(t, 1000)
	f.mock.SendErr = errors.New("nonce too low")

	_, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-fail", 25))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "SubmissionFailed", appErr.Code)
	require.True(t, appErr.Retryable)

	state, serr := f.ledger.State(context.Background())
	require.NoError(t, serr)
	require.InDelta(t, 1000, state.Balance, 1e-9)

	rec, rerr := f.orch.Records().Get(context.Background(), "tx-fail")
	require.NoError(t, rerr)
	require.Equal(t, models.PayoutFailed, rec.Status)

	// Terminal failure is immutable: the same id replays the failed record.
	f.mock.SendErr = nil
	out, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-fail", 25))
	require.NoError(t, err)
	require.True(t, out.AlreadyProcessed)
	require.Equal(t, models.PayoutFailed, out.Record.Status)
}

func TestProcessSendFailureNotResubmittedByPoll(t *testing.T) {
	f := newFixture(t, 1000)
	f.mock.SendErr = errors.New("nonce too low")

	_, err := f.orch.Process(context.Background(), testPlayer, payoutReq("tx-late", 25))
	require.Error(t, err)

	// The chain heals and the poll loop passes the backoff window. The
	// rolled-back transfer must stay dead: no submission, no ledger drift.
	f.mock.SendErr = nil
	f.clk.Add(monitor.PollInterval)
	f.mon.Poll(context.Background())

	require.Empty(t, f.mock.Sent())
	state, serr := f.ledger.State(context.Background())
	require.NoError(t, serr)
	require.InDelta(t, 1000, state.Balance, 1e-9)

	rec, rerr := f.orch.Records().Get(context.Background(), "tx-late")
	require.NoError(t, rerr)
	require.Equal(t, models.PayoutFailed, rec.Status)
}

func TestProcessHeldLockRejectsConcurrent(t *testing.T) {
	f := newFixture(t, 1000)
	locks := NewLocks(f.kv, 30*time.Second)
	release, err := locks.Acquire(context.Background(), testPlayer)
	require.NoError(t, err)
	defer release()

	_, err = f.orch.Process(context.Background(), testPlayer, payoutReq("tx-locked", 10))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, "Locked", appErr.Code)
	require.Positive(t, appErr.RetryAfter)

	// The claim was released along with the rejection.
	rec, rerr := f.orch.Records().Get(context.Background(), "tx-locked")
	require.NoError(t, rerr)
	require.Nil(t, rec)
}

func TestProcessConcurrentDistinctIDs(t *testing.T) {
	f := newFixture(t, 1000)
	ids := []string{"tx-c1", "tx-c2", "tx-c3", "tx-c4", "tx-c5"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	executed := 0
	locked := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := f.orch.Process(context.Background(), testPlayer, payoutReq(id, 10))
			mu.Lock()
			defer mu.Unlock()
			if err == nil && out.Record.Status == models.PayoutExecuted {
				executed++
				return
			}
			if appErr, ok := apperr.As(err); ok && appErr.Code == "Locked" {
				locked++
			}
		}(id)
	}
	wg.Wait()

	require.Equal(t, len(ids), executed+locked)
	require.GreaterOrEqual(t, executed, 1)

	state, err := f.ledger.State(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1000-float64(executed)*10, state.Balance, 1e-9)
	require.Len(t, f.mock.Sent(), executed)
}
