package auth

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService("test-secret", time.Hour, clk)

	token, err := svc.Issue("0x742d35cc6634c0532925a3b844bc454e4438f44e",
		[]string{PermissionPlay, PermissionPayout})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e", claims.Address)
	require.True(t, claims.Has(PermissionPayout))
	require.False(t, claims.Has(PermissionSign))
}

func TestValidateExpiredToken(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService("test-secret", time.Hour, clk)

	token, err := svc.Issue("0x742d35cc6634c0532925a3b844bc454e4438f44e", []string{PermissionPlay})
	require.NoError(t, err)

	clk.Add(2 * time.Hour)
	_, err = svc.Validate(token)
	require.Error(t, err)
}

func TestValidateWrongSecret(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	issuer := NewService("secret-a", time.Hour, clk)
	verifier := NewService("secret-b", time.Hour, clk)

	token, err := issuer.Issue("0x742d35cc6634c0532925a3b844bc454e4438f44e", nil)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
}
