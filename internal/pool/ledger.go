package pool

import (
	"context"
	"encoding/json"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/events"
	"faircore-backend/internal/models"
	"faircore-backend/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	dateLayout     = "2006-01-02"
	dailyRetention = 7 * 24 * time.Hour
	SweepInterval  = time.Hour
)

// State is the shared liquidity pool position. Mutated only through the
// ledger methods; stored as one JSON document and guarded by CAS.
type State struct {
	Balance            float64            `json:"balance"`
	ReserveRatio       float64            `json:"reserve_ratio"`
	DailyWithdrawn     map[string]float64 `json:"daily_withdrawn"`
	MaxDailyWithdrawal float64            `json:"max_daily_withdrawal"`
	MaxSingleTx        float64            `json:"max_single_tx"`
	EmergencyMode      bool               `json:"emergency_mode"`
}

type Options struct {
	InitialBalance     float64
	ReserveRatio       float64
	MaxDailyWithdrawal float64
	MaxSingleTx        float64
}

type Ledger struct {
	kv     store.KV
	clk    clock.Clock
	logger *zap.Logger
	bus    *events.Bus
	opts   Options
}

func NewLedger(kv store.KV, clk clock.Clock, logger *zap.Logger, bus *events.Bus, opts Options) *Ledger {
	return &Ledger{kv: kv, clk: clk, logger: logger, bus: bus, opts: opts}
}

// Init seeds the pool state when none exists yet. Safe to call on every
// startup.
func (l *Ledger) Init(ctx context.Context) error {
	state := &State{
		Balance:            l.opts.InitialBalance,
		ReserveRatio:       l.opts.ReserveRatio,
		DailyWithdrawn:     map[string]float64{},
		MaxDailyWithdrawal: l.opts.MaxDailyWithdrawal,
		MaxSingleTx:        l.opts.MaxSingleTx,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = l.kv.SetNX(ctx, store.KeyPoolState, data, 0)
	return errors.Wrap(err, "failed initializing pool state")
}

func (l *Ledger) State(ctx context.Context) (*State, error) {
	state, _, err := l.load(ctx)
	return state, err
}

func (l *Ledger) load(ctx context.Context) (*State, []byte, error) {
	raw, err := l.kv.Get(ctx, store.KeyPoolState)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed loading pool state")
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, nil, errors.Wrap(err, "failed decoding pool state")
	}
	if state.DailyWithdrawn == nil {
		state.DailyWithdrawn = map[string]float64{}
	}
	return &state, raw, nil
}

func (l *Ledger) swap(ctx context.Context, old []byte, state *State) (bool, error) {
	updated, err := json.Marshal(state)
	if err != nil {
		return false, err
	}
	ok, err := l.kv.CompareAndSwap(ctx, store.KeyPoolState, old, updated, 0)
	if err != nil {
		return false, errors.Wrap(err, "failed swapping pool state")
	}
	return ok, nil
}

// Debit withdraws amount from the pool and records it against today's
// withdrawal usage. The whole check-and-update runs under CAS so concurrent
// debits never overdraw.
func (l *Ledger) Debit(ctx context.Context, amount float64) error {
	for {
		state, raw, err := l.load(ctx)
		if err != nil {
			return err
		}
		if state.EmergencyMode {
			return apperr.Pool("EmergencyMode", "pool is in emergency mode, withdrawals suspended")
		}
		if amount > state.MaxSingleTx {
			return apperr.Validation("MaxSingleTxExceeded", "amount exceeds the single-transaction cap")
		}
		today := l.clk.Now().UTC().Format(dateLayout)
		if state.DailyWithdrawn[today]+amount > state.MaxDailyWithdrawal {
			return apperr.Pool("DailyLimitExceeded", "daily withdrawal limit reached")
		}
		if state.Balance < amount {
			return apperr.Pool("PoolInsufficient", "pool balance insufficient")
		}

		state.Balance = models.RoundMoney(state.Balance - amount)
		state.DailyWithdrawn[today] = models.RoundMoney(state.DailyWithdrawn[today] + amount)

		ok, err := l.swap(ctx, raw, state)
		if err != nil {
			return err
		}
		if ok {
			l.bus.Publish(events.TopicPoolBalance, state.Balance)
			return nil
		}
		// Lost the race, reload and retry.
	}
}

// Credit returns funds to the pool (refund reversal, top-up).
func (l *Ledger) Credit(ctx context.Context, amount float64) error {
	for {
		state, raw, err := l.load(ctx)
		if err != nil {
			return err
		}
		state.Balance = models.RoundMoney(state.Balance + amount)
		ok, err := l.swap(ctx, raw, state)
		if err != nil {
			return err
		}
		if ok {
			l.bus.Publish(events.TopicPoolBalance, state.Balance)
			return nil
		}
	}
}

func (l *Ledger) SetEmergency(ctx context.Context, on bool) error {
	for {
		state, raw, err := l.load(ctx)
		if err != nil {
			return err
		}
		if state.EmergencyMode == on {
			return nil
		}
		state.EmergencyMode = on
		ok, err := l.swap(ctx, raw, state)
		if err != nil {
			return err
		}
		if ok {
			l.bus.Publish(events.TopicPoolEmergency, on)
			l.logger.Warn("pool emergency mode changed", zap.Bool("on", on))
			return nil
		}
	}
}

// Prune drops daily withdrawal entries older than 7 days.
func (l *Ledger) Prune(ctx context.Context) {
	cutoff := l.clk.Now().UTC().Add(-dailyRetention)
	for {
		state, raw, err := l.load(ctx)
		if err != nil {
			l.logger.Error("pool prune failed", zap.Error(err))
			return
		}
		changed := false
		for day := range state.DailyWithdrawn {
			ts, err := time.Parse(dateLayout, day)
			if err != nil || ts.Before(cutoff) {
				delete(state.DailyWithdrawn, day)
				changed = true
			}
		}
		if !changed {
			return
		}
		ok, err := l.swap(ctx, raw, state)
		if err != nil {
			l.logger.Error("pool prune failed", zap.Error(err))
			return
		}
		if ok {
			return
		}
	}
}

// StartSweeper prunes stale daily entries on a fixed interval. Returns
// immediately; the sweep runs on its own goroutine.
func (l *Ledger) StartSweeper(ctx context.Context) {
	go func() {
		ticker := l.clk.Ticker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Prune(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
