package models

import "time"

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
	TxTimeout   TxStatus = "timeout"
	TxDropped   TxStatus = "dropped"
)

func (s TxStatus) Terminal() bool {
	return s != TxPending
}

// TrackedTransaction is owned by the transaction monitor and polled until it
// reaches a terminal status.
type TrackedTransaction struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash,omitempty"`
	To          string    `json:"to"`
	Amount      float64   `json:"amount"`
	Status      TxStatus  `json:"status"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}
