package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("store: key not found")

// KV is the persistence contract shared by the idempotency store, lock table,
// pool ledger, session table and proposal table. The in-process map backend
// is valid for a single-instance deployment; redis backs multi-instance runs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores the value only when the key is absent.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndSwap replaces the value only when the stored bytes equal old.
	CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

const (
	KeySession      = "session:%s"
	KeyPayoutRecord = "payout:record:%s"
	KeyAddressLock  = "payout:lock:%s"
	KeyPoolState    = "pool:state"
	KeyProposal     = "multisig:proposal:%s"

	TTLSessionGrace = 5 * time.Minute
	TTLPayoutRecord = 30 * 24 * time.Hour
	TTLProposal     = 14 * 24 * time.Hour
)
