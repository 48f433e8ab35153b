package multisig_test

import (
	"context"
	"testing"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/events"
	"faircore-backend/internal/models"
	"faircore-backend/internal/multisig"
	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var signers = []string{
	"0x1111111111111111111111111111111111111111",
	"0x2222222222222222222222222222222222222222",
	"0x3333333333333333333333333333333333333333",
}

func newService(t *testing.T) (*multisig.Service, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	kv := store.NewMemory(clk)
	return multisig.NewService(kv, clk, zap.NewNop(), events.NewBus(), signers), clk
}

func createProposal(t *testing.T, svc *multisig.Service) *models.Proposal {
	t.Helper()
	p, err := svc.CreateProposal(context.Background(), multisig.OperationPayout,
		"0x742d35cc6634c0532925a3b844bc454e4438f44e", 5000, 2, time.Hour)
	require.NoError(t, err)
	return p
}

func TestApprovalThreshold(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	p := createProposal(t, svc)
	assert.Equal(t, models.ProposalPending, p.Status)

	p, err := svc.Sign(ctx, p.ID, signers[0])
	require.NoError(t, err)
	assert.Equal(t, models.ProposalPending, p.Status, "one of two signatures")

	// Duplicate signature does not advance the count.
	p, err = svc.Sign(ctx, p.ID, signers[0])
	require.NoError(t, err)
	assert.Len(t, p.Signatures, 1)

	p, err = svc.Sign(ctx, p.ID, signers[1])
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, p.Status)
}

func TestUnauthorizedSigner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	p := createProposal(t, svc)

	_, err := svc.Sign(ctx, p.ID, "0x9999999999999999999999999999999999999999")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "UnauthorizedSigner", appErr.Code)
	assert.Equal(t, apperr.CategoryAuthorization, appErr.Category)
}

func TestTimelockGatesExecution(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService(t)
	p := createProposal(t, svc)

	_, err := svc.Sign(ctx, p.ID, signers[0])
	require.NoError(t, err)
	p, err = svc.Sign(ctx, p.ID, signers[1])
	require.NoError(t, err)
	require.Equal(t, models.ProposalApproved, p.Status)

	assert.False(t, svc.CanExecute(p), "approved but still timelocked")
	_, err = svc.MarkExecuted(ctx, p.ID)
	assert.Error(t, err)

	clk.Add(time.Hour)
	p, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, svc.CanExecute(p))

	p, err = svc.MarkExecuted(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalExecuted, p.Status)
}

func TestProposalExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService(t)
	p := createProposal(t, svc)

	// Past timelock + 7 day approval window without reaching the threshold.
	clk.Add(time.Hour + multisig.ApprovalWindow + time.Minute)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalExpired, got.Status)
	assert.False(t, svc.CanExecute(got))

	_, err = svc.Sign(ctx, p.ID, signers[0])
	require.Error(t, err, "expired proposals cannot gather signatures")
}

func TestSweepExpiresPending(t *testing.T) {
	ctx := context.Background()
	svc, clk := newService(t)
	p := createProposal(t, svc)

	clk.Add(time.Hour + multisig.ApprovalWindow + time.Minute)
	svc.Sweep(ctx)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalExpired, got.Status)
}

func TestUnknownProposal(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	appErr, _ := apperr.As(err)
	assert.Equal(t, "ProposalNotFound", appErr.Code)
}
