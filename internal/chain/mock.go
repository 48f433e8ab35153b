package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mock is an in-process chain client for tests and single-node development
// runs. Every send confirms on the next receipt poll unless a failure mode
// is armed.
type Mock struct {
	mu       sync.Mutex
	balances map[string]float64
	receipts map[string]*Receipt
	sent     []SentTx

	// Failure toggles, checked per call.
	SendErr    error
	ReceiptErr error
	RevertNext bool
	GasPrice   float64
}

type SentTx struct {
	Hash   string
	From   string
	To     string
	Amount float64
}

func NewMock() *Mock {
	return &Mock{
		balances: make(map[string]float64),
		receipts: make(map[string]*Receipt),
		GasPrice: 0.0002,
	}
}

func (m *Mock) SetBalance(address string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = balance
}

func (m *Mock) GetBalance(_ context.Context, address string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address], nil
}

func (m *Mock) SendTransaction(_ context.Context, from, to string, amount float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	hash := fmt.Sprintf("0xmock%s", uuid.NewString()[:16])
	status := ReceiptSuccess
	if m.RevertNext {
		status = ReceiptReverted
		m.RevertNext = false
	}
	m.receipts[hash] = &Receipt{Hash: hash, Status: status}
	m.sent = append(m.sent, SentTx{Hash: hash, From: from, To: to, Amount: amount})
	return hash, nil
}

func (m *Mock) GetTransactionReceipt(_ context.Context, hash string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiptErr != nil {
		return nil, m.ReceiptErr
	}
	r, ok := m.receipts[hash]
	if !ok {
		return nil, ErrTxUnknown
	}
	return r, nil
}

// Withhold removes the receipt for a hash so polls see a still-pending
// transaction.
func (m *Mock) Withhold(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[hash] = nil
}

// Forget makes the node deny knowledge of the hash entirely.
func (m *Mock) Forget(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.receipts, hash)
}

func (m *Mock) GetGasPrice(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GasPrice, nil
}

func (m *Mock) Sent() []SentTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentTx, len(m.sent))
	copy(out, m.sent)
	return out
}
