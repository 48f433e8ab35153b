package chain

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const gasRefreshInterval = 30 * time.Second

// GasTracker caches the gas price so the payout path never blocks on an RPC
// round-trip just to size its buffer.
type GasTracker struct {
	mu     sync.RWMutex
	client Client
	clk    clock.Clock
	logger *zap.Logger
	price  float64
}

func NewGasTracker(client Client, clk clock.Clock, logger *zap.Logger) *GasTracker {
	return &GasTracker{client: client, clk: clk, logger: logger}
}

func (g *GasTracker) Price() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.price
}

func (g *GasTracker) Refresh(ctx context.Context) {
	price, err := g.client.GetGasPrice(ctx)
	if err != nil {
		g.logger.Warn("gas price refresh failed", zap.Error(err))
		return
	}
	g.mu.Lock()
	g.price = price
	g.mu.Unlock()
}

// StartRefresher polls the gas market on a fixed interval. The first refresh
// happens synchronously so a price is available before the first payout.
func (g *GasTracker) StartRefresher(ctx context.Context) {
	g.Refresh(ctx)
	go func() {
		ticker := g.clk.Ticker(gasRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
