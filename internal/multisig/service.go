package multisig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/events"
	"faircore-backend/internal/models"
	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// ApprovalWindow is how long after the timelock a proposal may still
	// gather signatures before it auto-expires.
	ApprovalWindow = 7 * 24 * time.Hour
	SweepInterval  = 10 * time.Minute

	OperationPayout = "payout"
)

// Service tracks multi-signature approval proposals for operations above the
// direct-execution threshold.
type Service struct {
	kv      store.KV
	clk     clock.Clock
	logger  *zap.Logger
	bus     *events.Bus
	signers map[string]bool
}

func NewService(kv store.KV, clk clock.Clock, logger *zap.Logger, bus *events.Bus, signers []string) *Service {
	set := make(map[string]bool, len(signers))
	for _, s := range signers {
		set[s] = true
	}
	return &Service{kv: kv, clk: clk, logger: logger, bus: bus, signers: set}
}

func proposalKey(id string) string {
	return fmt.Sprintf(store.KeyProposal, id)
}

// CreateProposal stores a Pending proposal. Execution is gated behind both
// the signature threshold and the timelock.
func (s *Service) CreateProposal(ctx context.Context, operation, target string, amount float64, requiredSignatures int, timelock time.Duration) (*models.Proposal, error) {
	if requiredSignatures < 1 {
		return nil, apperr.Validation("ValidationError", "required signatures must be at least 1")
	}
	now := s.clk.Now()
	p := &models.Proposal{
		ID:                 uuid.NewString(),
		Operation:          operation,
		Target:             target,
		Amount:             amount,
		RequiredSignatures: requiredSignatures,
		Signatures:         []string{},
		Status:             models.ProposalPending,
		CreatedAt:          now,
		ExecutionNotBefore: now.Add(timelock),
		ExpiresAt:          now.Add(timelock).Add(ApprovalWindow),
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.bus.Publish(events.TopicProposal, p)
	s.logger.Info("multisig proposal created",
		zap.String("id", p.ID),
		zap.String("operation", operation),
		zap.Float64("amount", amount),
		zap.Int("required_signatures", requiredSignatures))
	return p, nil
}

// Sign records a signature from an authorized signer. The proposal flips to
// Approved once the threshold is met. Duplicate signatures are no-ops.
func (s *Service) Sign(ctx context.Context, proposalID, signer string) (*models.Proposal, error) {
	if !s.signers[signer] {
		return nil, apperr.Authorization("UnauthorizedSigner", "signer is not in the authorized set")
	}
	for {
		p, raw, err := s.load(ctx, proposalID)
		if err != nil {
			return nil, err
		}
		if s.expirePending(p) {
			if err := s.save(ctx, p); err != nil {
				return nil, err
			}
			return nil, apperr.Validation("ProposalExpired", "proposal expired before approval")
		}
		if p.Status != models.ProposalPending {
			return nil, apperr.Validation("ProposalNotPending",
				fmt.Sprintf("proposal is %s", p.Status))
		}
		if p.SignedBy(signer) {
			return p, nil
		}
		p.Signatures = append(p.Signatures, signer)
		if len(p.Signatures) >= p.RequiredSignatures {
			p.Status = models.ProposalApproved
		}

		updated, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		ok, err := s.kv.CompareAndSwap(ctx, proposalKey(proposalID), raw, updated, store.TTLProposal)
		if err != nil && err != store.ErrNotFound {
			return nil, errors.Wrap(err, "failed storing signature")
		}
		if ok {
			if p.Status == models.ProposalApproved {
				s.bus.Publish(events.TopicProposal, p)
				s.logger.Info("multisig proposal approved", zap.String("id", p.ID))
			}
			return p, nil
		}
		// Concurrent signer won the swap; retry on fresh state.
	}
}

func (s *Service) Get(ctx context.Context, proposalID string) (*models.Proposal, error) {
	p, _, err := s.load(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	s.expirePending(p)
	return p, nil
}

// CanExecute reports whether the proposal is approved and past its timelock.
func (s *Service) CanExecute(p *models.Proposal) bool {
	return p.Status == models.ProposalApproved && !s.clk.Now().Before(p.ExecutionNotBefore)
}

// MarkExecuted transitions Approved -> Executed, refusing early execution.
func (s *Service) MarkExecuted(ctx context.Context, proposalID string) (*models.Proposal, error) {
	for {
		p, raw, err := s.load(ctx, proposalID)
		if err != nil {
			return nil, err
		}
		if !s.CanExecute(p) {
			return nil, apperr.Validation("ProposalNotExecutable",
				"proposal must be approved and past its timelock")
		}
		p.Status = models.ProposalExecuted
		updated, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		ok, err := s.kv.CompareAndSwap(ctx, proposalKey(proposalID), raw, updated, store.TTLProposal)
		if err != nil && err != store.ErrNotFound {
			return nil, errors.Wrap(err, "failed marking proposal executed")
		}
		if ok {
			return p, nil
		}
	}
}

// expirePending flips a stale pending proposal to Expired in memory and
// reports whether it did.
func (s *Service) expirePending(p *models.Proposal) bool {
	if p.Status == models.ProposalPending && s.clk.Now().After(p.ExpiresAt) {
		p.Status = models.ProposalExpired
		return true
	}
	return false
}

func (s *Service) load(ctx context.Context, proposalID string) (*models.Proposal, []byte, error) {
	raw, err := s.kv.Get(ctx, proposalKey(proposalID))
	if err == store.ErrNotFound {
		return nil, nil, apperr.Validation("ProposalNotFound", "proposal not found")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed loading proposal")
	}
	var p models.Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, errors.Wrap(err, "failed decoding proposal")
	}
	return &p, raw, nil
}

func (s *Service) save(ctx context.Context, p *models.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return errors.Wrap(s.kv.Set(ctx, proposalKey(p.ID), data, store.TTLProposal),
		"failed saving proposal")
}

// Sweep marks pending proposals past their expiry as Expired.
func (s *Service) Sweep(ctx context.Context) {
	keys, err := s.kv.Keys(ctx, "multisig:proposal:")
	if err != nil {
		s.logger.Error("proposal sweep failed", zap.Error(err))
		return
	}
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var p models.Proposal
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if s.expirePending(&p) {
			if err := s.save(ctx, &p); err == nil {
				s.logger.Info("multisig proposal expired", zap.String("id", p.ID))
			}
		}
	}
}

func (s *Service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := s.clk.Ticker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
