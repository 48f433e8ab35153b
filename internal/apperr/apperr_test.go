package apperr_test

import (
	"testing"
	"time"

	"faircore-backend/internal/apperr"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRetryDelays(t *testing.T) {
	assert.Equal(t, time.Second, apperr.RetryDelay(apperr.CategoryNetwork))
	assert.Equal(t, 5*time.Second, apperr.RetryDelay(apperr.CategoryPayment))
	assert.Equal(t, 30*time.Second, apperr.RetryDelay(apperr.CategoryPool))
	assert.Equal(t, time.Duration(0), apperr.RetryDelay(apperr.CategoryValidation))
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	base := apperr.Pool("PoolInsufficient", "pool balance too low")
	wrapped := errors.Wrap(base, "debit failed")

	e, ok := apperr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "PoolInsufficient", e.Code)
	assert.True(t, e.Retryable)
}

func TestSanitizedHidesInternals(t *testing.T) {
	out := apperr.Sanitized(errors.New("pgx: connection refused at 10.0.0.3"))
	assert.Equal(t, "InternalError", out["code"])
	assert.NotContains(t, out["message"], "10.0.0.3")

	e := apperr.Pool("PoolInsufficient", "pool balance too low").WithSupportRef("ref-123")
	out = apperr.Sanitized(e)
	assert.Equal(t, "PoolInsufficient", out["code"])
	assert.Equal(t, "ref-123", out["support_ref"])
}

func TestBreakerOpensAfterFiveFailures(t *testing.T) {
	clk := clock.NewMock()
	b := apperr.NewBreaker(5, 5*time.Minute, clk)

	for i := 0; i < 4; i++ {
		b.Failure()
		assert.True(t, b.Allow(), "breaker should stay closed at %d failures", i+1)
	}
	b.Failure()
	assert.False(t, b.Allow(), "breaker should open at 5 failures")

	// Half-open after the cool-down, a single trial allowed.
	clk.Add(5 * time.Minute)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "only one trial call in half-open")

	b.Success()
	assert.True(t, b.Allow())
	assert.Equal(t, apperr.BreakerClosed, b.State())
}

func TestBreakerReopensOnFailedTrial(t *testing.T) {
	clk := clock.NewMock()
	b := apperr.NewBreaker(5, 5*time.Minute, clk)
	for i := 0; i < 5; i++ {
		b.Failure()
	}
	clk.Add(5 * time.Minute)
	require.True(t, b.Allow())

	b.Failure()
	assert.False(t, b.Allow())
	clk.Add(5 * time.Minute)
	assert.True(t, b.Allow())
}
