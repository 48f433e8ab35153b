package models

import "time"

type PayoutPriority string

const (
	PriorityLow    PayoutPriority = "low"
	PriorityNormal PayoutPriority = "normal"
	PriorityHigh   PayoutPriority = "high"
	PriorityUrgent PayoutPriority = "urgent"
)

func (p PayoutPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// PayoutRequest carries a caller-supplied TransactionID that acts as the
// idempotency key for the logical payout.
type PayoutRequest struct {
	PlayerAddress string         `json:"player_address"`
	Amount        float64        `json:"amount"`
	BetAmount     float64        `json:"bet_amount,omitempty"`
	GameType      GameType       `json:"game_type"`
	TransactionID string         `json:"transaction_id"`
	Priority      PayoutPriority `json:"priority"`
	GameProof     *Proof         `json:"game_proof,omitempty"`
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutLocked    PayoutStatus = "locked"
	PayoutExecuted  PayoutStatus = "executed"
	PayoutEscalated PayoutStatus = "escalated"
	PayoutRefunded  PayoutStatus = "refunded"
	PayoutFailed    PayoutStatus = "failed"
)

// Terminal states are immutable; a replayed TransactionID past a terminal
// state returns the stored outcome without reprocessing.
func (s PayoutStatus) Terminal() bool {
	switch s {
	case PayoutExecuted, PayoutEscalated, PayoutRefunded, PayoutFailed:
		return true
	}
	return false
}

type PayoutRecord struct {
	TransactionID string       `json:"transaction_id"`
	PlayerAddress string       `json:"player_address"`
	Amount        float64      `json:"amount"`
	Status        PayoutStatus `json:"status"`
	OnChainTxHash string       `json:"on_chain_tx_hash,omitempty"`
	ProposalID    string       `json:"proposal_id,omitempty"`
	MonitoringID  string       `json:"monitoring_id,omitempty"`
	Refunded      bool         `json:"refunded,omitempty"`
	FailureCode   string       `json:"failure_code,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
