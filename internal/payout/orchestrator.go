package payout

import (
	"context"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/chain"
	"faircore-backend/internal/config"
	"faircore-backend/internal/events"
	"faircore-backend/internal/games"
	"faircore-backend/internal/models"
	"faircore-backend/internal/monitor"
	"faircore-backend/internal/multisig"
	"faircore-backend/internal/pool"
	"faircore-backend/internal/security"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Outcome is the terminal result of one payout request.
type Outcome struct {
	Record           *models.PayoutRecord
	TransactionHash  string
	MonitoringID     string
	ProposalID       string
	Refunded         bool
	AlreadyProcessed bool
}

// Orchestrator runs the payout workflow: validate, authorize, deduplicate,
// lock, audit, fund-check, then execute, escalate or refund. Once past lock
// acquisition the workflow always reaches a terminal record state, even if
// the caller goes away.
type Orchestrator struct {
	cfg      config.Payouts
	records  *Records
	locks    *Locks
	limiter  *RateLimiter
	ledger   *pool.Ledger
	multisig *multisig.Service
	monitor  *monitor.Monitor
	audit    security.Checker
	gas      *chain.GasTracker
	bus      *events.Bus
	clk      clock.Clock
	logger   *zap.Logger
	breakers *apperr.BreakerSet
}

type Deps struct {
	Records  *Records
	Locks    *Locks
	Limiter  *RateLimiter
	Ledger   *pool.Ledger
	Multisig *multisig.Service
	Monitor  *monitor.Monitor
	Audit    security.Checker
	Gas      *chain.GasTracker
	Bus      *events.Bus
	Clock    clock.Clock
	Logger   *zap.Logger
}

func NewOrchestrator(cfg config.Payouts, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		records:  deps.Records,
		locks:    deps.Locks,
		limiter:  deps.Limiter,
		ledger:   deps.Ledger,
		multisig: deps.Multisig,
		monitor:  deps.Monitor,
		audit:    deps.Audit,
		gas:      deps.Gas,
		bus:      deps.Bus,
		clk:      deps.Clock,
		logger:   deps.Logger,
		breakers: apperr.NewBreakerSet(deps.Clock),
	}
}

// Process drives one payout request to a terminal outcome. caller is the
// authenticated identity from the auth layer.
func (o *Orchestrator) Process(ctx context.Context, caller string, req *models.PayoutRequest) (*Outcome, error) {
	// 1. Validate.
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("ValidationError", err.Error())
	}
	if req.Amount < o.cfg.MinPayout || req.Amount > o.cfg.MaxPayout {
		return nil, apperr.Validation("ValidationError", "amount outside the payout bounds")
	}
	if req.GameType != "" {
		gameCap := games.PayoutCap(req.GameType)
		if gameCap == 0 {
			return nil, apperr.Validation("ValidationError", "unknown game type")
		}
		if req.Amount > gameCap {
			return nil, apperr.Validation("ValidationError", "amount exceeds the payout cap for the game type")
		}
	}

	// 2. Authorization: a caller can only cash out to their own address.
	if caller != req.PlayerAddress {
		return nil, apperr.Authorization("AuthorizationError",
			"payout address does not match the authenticated caller")
	}

	// 3. Rate limit on the sensitive class.
	if err := o.limiter.Allow(caller, ClassSensitive); err != nil {
		return nil, err
	}

	// 4. Idempotency: one execution per transaction id, ever.
	now := o.clk.Now()
	record := &models.PayoutRecord{
		TransactionID: req.TransactionID,
		PlayerAddress: req.PlayerAddress,
		Amount:        req.Amount,
		Status:        models.PayoutPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	claimed, existing, err := o.records.Claim(ctx, record)
	if err != nil {
		return nil, apperr.System("StorageError", "failed recording payout").WithCause(err)
	}
	if !claimed {
		return o.replay(existing)
	}

	// 5. Per-address lock. One payout per address past this point.
	release, err := o.locks.Acquire(ctx, req.PlayerAddress)
	if err != nil {
		// The id was claimed but never processed; clear it so the caller
		// can retry once the lock frees up.
		o.deleteClaim(req.TransactionID)
		return nil, err
	}
	defer release()

	// Past the lock the workflow must reach a terminal state even when the
	// client disconnects.
	ctx = context.WithoutCancel(ctx)

	outcome, err := o.locked(ctx, req, record)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// locked runs steps 5-8 of the workflow while holding the address lock.
func (o *Orchestrator) locked(ctx context.Context, req *models.PayoutRequest, record *models.PayoutRecord) (*Outcome, error) {
	// Security gate: never touch the ledger during a critical audit state.
	status, err := o.audit.RunQuickCheck(ctx)
	if err != nil {
		o.logger.Warn("security quick-check unavailable", zap.Error(err))
	}
	if status == security.StatusCritical {
		o.bus.Publish(events.TopicSecurityAlert, req.TransactionID)
		o.deleteClaim(req.TransactionID)
		return nil, apperr.Security("SecurityBlocked",
			"payouts suspended pending security review")
	}

	// Pool balance: the transfer needs the amount plus a gas buffer.
	required := req.Amount + o.gasBuffer()
	state, err := o.ledger.State(ctx)
	if err != nil {
		o.deleteClaim(req.TransactionID)
		return nil, apperr.System("StorageError", "failed reading pool state").WithCause(err)
	}
	if state.Balance < required {
		return o.refund(ctx, req, record)
	}

	// Threshold: large payouts escalate to multi-sig instead of executing.
	if req.Amount > o.cfg.MultisigThreshold {
		return o.escalate(ctx, req, record)
	}

	return o.execute(ctx, req, record)
}

func (o *Orchestrator) gasBuffer() float64 {
	buffer := o.cfg.GasBuffer
	if o.gas != nil {
		if p := o.gas.Price(); p > buffer {
			buffer = p
		}
	}
	return buffer
}

// execute debits the pool, submits the transfer and hands the hash to the
// transaction monitor.
func (o *Orchestrator) execute(ctx context.Context, req *models.PayoutRequest, record *models.PayoutRecord) (*Outcome, error) {
	breaker := o.breakers.For(apperr.CategoryPayment)
	if !breaker.Allow() {
		o.deleteClaim(req.TransactionID)
		return nil, apperr.Payment("CircuitOpen",
			"payment execution suspended after repeated failures")
	}

	if err := o.ledger.Debit(ctx, req.Amount); err != nil {
		o.deleteClaim(req.TransactionID)
		if appErr, ok := apperr.As(err); ok {
			return nil, appErr
		}
		return nil, apperr.System("StorageError", "failed debiting pool").WithCause(err)
	}

	tracked := o.monitor.Track(req.PlayerAddress, req.Amount)
	hash, err := o.monitor.Send(ctx, tracked.ID)
	if err != nil {
		breaker.Failure()
		// Withdraw the transaction from the monitor's retry schedule
		// before undoing the debit, or the poll loop would pay out later
		// without a matching ledger entry. The payout terminates Failed
		// and the caller may retry under a fresh transaction id.
		o.monitor.Abandon(tracked.ID)
		if cerr := o.ledger.Credit(ctx, req.Amount); cerr != nil {
			o.logger.Error("failed crediting pool after send failure",
				zap.String("transaction_id", req.TransactionID),
				zap.Error(cerr))
		}
		record.Status = models.PayoutFailed
		record.FailureCode = "SubmissionFailed"
		record.MonitoringID = tracked.ID
		record.UpdatedAt = o.clk.Now()
		if uerr := o.records.Update(ctx, record); uerr != nil {
			o.logger.Error("failed storing failed payout record", zap.Error(uerr))
		}
		return nil, apperr.Payment("SubmissionFailed", "transfer submission failed").WithCause(err)
	}
	breaker.Success()

	record.Status = models.PayoutExecuted
	record.OnChainTxHash = hash
	record.MonitoringID = tracked.ID
	record.UpdatedAt = o.clk.Now()
	if err := o.records.Update(ctx, record); err != nil {
		o.logger.Error("failed storing executed payout record", zap.Error(err))
	}

	o.bus.Publish(events.TopicPayoutExecuted, record)
	o.logger.Info("payout executed",
		zap.String("transaction_id", req.TransactionID),
		zap.String("address", req.PlayerAddress),
		zap.Float64("amount", req.Amount),
		zap.String("hash", hash))

	return &Outcome{
		Record:          record,
		TransactionHash: hash,
		MonitoringID:    tracked.ID,
	}, nil
}

// escalate parks the payout behind a multi-sig proposal; no funds move until
// approval and timelock.
func (o *Orchestrator) escalate(ctx context.Context, req *models.PayoutRequest, record *models.PayoutRecord) (*Outcome, error) {
	proposal, err := o.multisig.CreateProposal(ctx, multisig.OperationPayout,
		req.PlayerAddress, req.Amount, o.cfg.RequiredSignatures, o.cfg.Timelock)
	if err != nil {
		o.deleteClaim(req.TransactionID)
		return nil, apperr.System("EscalationFailed", "failed creating approval proposal").WithCause(err)
	}

	record.Status = models.PayoutEscalated
	record.ProposalID = proposal.ID
	record.UpdatedAt = o.clk.Now()
	if err := o.records.Update(ctx, record); err != nil {
		o.logger.Error("failed storing escalated payout record", zap.Error(err))
	}

	o.logger.Info("payout escalated to multisig",
		zap.String("transaction_id", req.TransactionID),
		zap.String("proposal_id", proposal.ID),
		zap.Float64("amount", req.Amount))

	return &Outcome{Record: record, ProposalID: proposal.ID}, nil
}

// refund pays back the original bet when the pool cannot cover the winnings.
// A failed refund surfaces a distinct error carrying a support reference so
// the case is never silently dropped.
func (o *Orchestrator) refund(ctx context.Context, req *models.PayoutRequest, record *models.PayoutRecord) (*Outcome, error) {
	fail := func(cause error) (*Outcome, error) {
		ref := models.GenerateSupportRef()
		record.Status = models.PayoutFailed
		record.FailureCode = "PoolInsufficientRefundFailed"
		record.UpdatedAt = o.clk.Now()
		if err := o.records.Update(ctx, record); err != nil {
			o.logger.Error("failed storing refund failure record", zap.Error(err))
		}
		o.logger.Error("bet refund failed",
			zap.String("transaction_id", req.TransactionID),
			zap.String("support_ref", ref),
			zap.Error(cause))
		return nil, apperr.Pool("PoolInsufficientRefundFailed",
			"pool insufficient and bet refund failed").WithSupportRef(ref).WithCause(cause)
	}

	if req.BetAmount <= 0 {
		return fail(apperr.Validation("ValidationError", "no bet amount available to refund"))
	}
	if err := o.ledger.Debit(ctx, req.BetAmount); err != nil {
		return fail(err)
	}

	tracked := o.monitor.Track(req.PlayerAddress, req.BetAmount)
	hash, err := o.monitor.Send(ctx, tracked.ID)
	if err != nil {
		o.monitor.Abandon(tracked.ID)
		if cerr := o.ledger.Credit(ctx, req.BetAmount); cerr != nil {
			o.logger.Error("failed crediting pool after refund send failure", zap.Error(cerr))
		}
		return fail(err)
	}

	record.Status = models.PayoutRefunded
	record.Refunded = true
	record.OnChainTxHash = hash
	record.MonitoringID = tracked.ID
	record.UpdatedAt = o.clk.Now()
	if err := o.records.Update(ctx, record); err != nil {
		o.logger.Error("failed storing refunded payout record", zap.Error(err))
	}

	o.bus.Publish(events.TopicPayoutRefunded, record)
	o.logger.Warn("pool insufficient, bet refunded",
		zap.String("transaction_id", req.TransactionID),
		zap.Float64("bet_amount", req.BetAmount),
		zap.Float64("win_amount", req.Amount))

	return &Outcome{
		Record:          record,
		TransactionHash: hash,
		MonitoringID:    tracked.ID,
		Refunded:        true,
	}, nil
}

// replay maps a previously stored record back to its original outcome.
func (o *Orchestrator) replay(record *models.PayoutRecord) (*Outcome, error) {
	if record == nil || !record.Status.Terminal() {
		// Claimed but not yet terminal: another request is mid-flight.
		return nil, apperr.Pool("Locked", "payout is being processed").
			WithRetryAfter(2 * time.Second)
	}
	return &Outcome{
		Record:           record,
		TransactionHash:  record.OnChainTxHash,
		MonitoringID:     record.MonitoringID,
		ProposalID:       record.ProposalID,
		Refunded:         record.Refunded,
		AlreadyProcessed: true,
	}, nil
}

// deleteClaim releases an idempotency claim for requests that never reached
// the ledger, letting the caller retry with the same transaction id.
func (o *Orchestrator) deleteClaim(transactionID string) {
	if err := o.records.kv.Delete(context.Background(), recordKey(transactionID)); err != nil {
		o.logger.Error("failed releasing idempotency claim",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}
}

// Records exposes the record store for history listings.
func (o *Orchestrator) Records() *Records {
	return o.records
}
