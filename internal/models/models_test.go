package models_test

import (
	"testing"

	"faircore-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidAddress(t *testing.T) {
	assert.True(t, models.ValidAddress("0x742d35cc6634c0532925a3b844bc454e4438f44e"))
	assert.False(t, models.ValidAddress("742d35cc6634c0532925a3b844bc454e4438f44e"))
	assert.False(t, models.ValidAddress("0x742d35"))
	assert.False(t, models.ValidAddress(""))
}

func TestPayoutRequestValidate(t *testing.T) {
	req := &models.PayoutRequest{
		PlayerAddress: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
		Amount:        19.8,
		GameType:      models.GameTypeDice,
		TransactionID: "tx-1",
	}
	assert.NoError(t, req.Validate())
	assert.Equal(t, models.PriorityNormal, req.Priority, "priority defaults to normal")

	bad := &models.PayoutRequest{PlayerAddress: "nope", TransactionID: "tx-2"}
	assert.Error(t, bad.Validate())

	noTx := &models.PayoutRequest{PlayerAddress: "0x742d35cc6634c0532925a3b844bc454e4438f44e"}
	assert.Error(t, noTx.Validate())

	badPrio := &models.PayoutRequest{
		PlayerAddress: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
		TransactionID: "tx-3",
		Priority:      "asap",
	}
	assert.Error(t, badPrio.Validate())
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, models.PayoutPending.Terminal())
	assert.False(t, models.PayoutLocked.Terminal())
	assert.True(t, models.PayoutExecuted.Terminal())
	assert.True(t, models.PayoutRefunded.Terminal())
	assert.True(t, models.PayoutEscalated.Terminal())
	assert.True(t, models.PayoutFailed.Terminal())

	assert.False(t, models.TxPending.Terminal())
	assert.True(t, models.TxDropped.Terminal())
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 19.8, models.RoundMoney(10*1.98))
	assert.Equal(t, 0.1235, models.RoundMoney(0.12345))
}
