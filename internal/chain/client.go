package chain

import (
	"context"

	"github.com/pkg/errors"
)

// ErrTxUnknown is returned when the node does not recognize a transaction
// hash; the monitor treats that as a dropped transaction.
var ErrTxUnknown = errors.New("chain: transaction unknown to node")

type ReceiptStatus int

const (
	ReceiptSuccess ReceiptStatus = iota
	ReceiptReverted
)

type Receipt struct {
	Hash   string
	Status ReceiptStatus
}

// Client is the narrow contract the core needs from a blockchain RPC client.
// Wire-level details live outside the core.
type Client interface {
	GetBalance(ctx context.Context, address string) (float64, error)
	// SendTransaction signs and submits a transfer; returns the tx hash.
	SendTransaction(ctx context.Context, from, to string, amount float64) (string, error)
	// GetTransactionReceipt returns (nil, nil) while the transaction is
	// still pending and ErrTxUnknown when the node never saw the hash.
	GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error)
	GetGasPrice(ctx context.Context) (float64, error)
}
