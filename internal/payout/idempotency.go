package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"faircore-backend/internal/models"
	"faircore-backend/internal/store"

	"github.com/pkg/errors"
)

// Records deduplicates payouts by their caller-supplied transaction id. The
// first sight of an id claims it atomically; replays observe the stored
// record.
type Records struct {
	kv store.KV
}

func NewRecords(kv store.KV) *Records {
	return &Records{kv: kv}
}

func recordKey(transactionID string) string {
	return fmt.Sprintf(store.KeyPayoutRecord, transactionID)
}

// Claim registers a pending record for the transaction id. When the id has
// been seen before, the stored record is returned with claimed=false.
func (r *Records) Claim(ctx context.Context, record *models.PayoutRecord) (claimed bool, existing *models.PayoutRecord, err error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, nil, err
	}
	ok, err := r.kv.SetNX(ctx, recordKey(record.TransactionID), data, store.TTLPayoutRecord)
	if err != nil {
		return false, nil, errors.Wrap(err, "failed claiming payout record")
	}
	if ok {
		return true, nil, nil
	}
	existing, err = r.Get(ctx, record.TransactionID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *Records) Get(ctx context.Context, transactionID string) (*models.PayoutRecord, error) {
	raw, err := r.kv.Get(ctx, recordKey(transactionID))
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed loading payout record")
	}
	var record models.PayoutRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrap(err, "failed decoding payout record")
	}
	return &record, nil
}

func (r *Records) Update(ctx context.Context, record *models.PayoutRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return errors.Wrap(r.kv.Set(ctx, recordKey(record.TransactionID), data, store.TTLPayoutRecord),
		"failed updating payout record")
}

// ByAddress lists stored records for one player address.
func (r *Records) ByAddress(ctx context.Context, address string) ([]*models.PayoutRecord, error) {
	keys, err := r.kv.Keys(ctx, "payout:record:")
	if err != nil {
		return nil, errors.Wrap(err, "failed listing payout records")
	}
	var out []*models.PayoutRecord
	for _, key := range keys {
		raw, err := r.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var record models.PayoutRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if record.PlayerAddress == address {
			out = append(out, &record)
		}
	}
	return out, nil
}
