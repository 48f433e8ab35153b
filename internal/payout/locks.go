package payout

import (
	"context"
	"fmt"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Locks serializes payouts per player address. A SetNX token with a TTL
// implements the per-key single-writer discipline; unrelated addresses never
// contend.
type Locks struct {
	kv  store.KV
	ttl time.Duration
}

func NewLocks(kv store.KV, ttl time.Duration) *Locks {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locks{kv: kv, ttl: ttl}
}

func lockKey(address string) string {
	return fmt.Sprintf(store.KeyAddressLock, address)
}

// Acquire takes the per-address lock and returns a release func. When the
// lock is held elsewhere it fails with a Locked error carrying a retry-after
// hint.
func (l *Locks) Acquire(ctx context.Context, address string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.kv.SetNX(ctx, lockKey(address), []byte(token), l.ttl)
	if err != nil {
		return nil, errors.Wrap(err, "failed acquiring address lock")
	}
	if !ok {
		return nil, apperr.Pool("Locked", "another payout for this address is in flight").
			WithRetryAfter(2 * time.Second)
	}
	release := func() {
		// Only the holder's token releases; an expired-and-reacquired
		// lock belongs to someone else.
		current, err := l.kv.Get(context.Background(), lockKey(address))
		if err == nil && string(current) == token {
			_ = l.kv.Delete(context.Background(), lockKey(address))
		}
	}
	return release, nil
}
