package payout

import (
	"context"
	"sync"
	"time"

	"faircore-backend/internal/apperr"

	"github.com/benbjohnson/clock"
)

type EndpointClass string

const (
	// ClassSensitive covers payout, game-result and auth endpoints.
	ClassSensitive EndpointClass = "sensitive"
	ClassGeneral   EndpointClass = "general"
)

type LimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimiter keeps a sliding window of request timestamps per
// (identity, class). Rejected requests consume nothing beyond the counter.
type RateLimiter struct {
	mu      sync.Mutex
	clk     clock.Clock
	rules   map[EndpointClass]LimitRule
	windows map[string][]time.Time
}

func NewRateLimiter(clk clock.Clock, sensitive, general LimitRule) *RateLimiter {
	return &RateLimiter{
		clk: clk,
		rules: map[EndpointClass]LimitRule{
			ClassSensitive: sensitive,
			ClassGeneral:   general,
		},
		windows: make(map[string][]time.Time),
	}
}

// Allow records the request when under the threshold; otherwise it fails
// with a RateLimited error carrying the time until the oldest entry leaves
// the window.
func (r *RateLimiter) Allow(identity string, class EndpointClass) error {
	rule, ok := r.rules[class]
	if !ok {
		rule = r.rules[ClassGeneral]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := identity + ":" + string(class)
	now := r.clk.Now()
	cutoff := now.Add(-rule.Window)

	window := r.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rule.Limit {
		retryAfter := kept[0].Sub(cutoff)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		r.windows[key] = kept
		return apperr.Throttled("rate limit exceeded").WithRetryAfter(retryAfter)
	}

	r.windows[key] = append(kept, now)
	return nil
}

// TrimInterval paces the background window trim.
const TrimInterval = 5 * time.Minute

// StartTrimmer runs Trim on a fixed interval until the context is done.
// Returns immediately; trimming runs on its own goroutine.
func (r *RateLimiter) StartTrimmer(ctx context.Context) {
	go func() {
		ticker := r.clk.Ticker(TrimInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Trim()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trim drops identities whose windows have fully drained; run periodically
// to bound memory.
func (r *RateLimiter) Trim() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clk.Now()
	for key, window := range r.windows {
		maxWindow := time.Duration(0)
		for _, rule := range r.rules {
			if rule.Window > maxWindow {
				maxWindow = rule.Window
			}
		}
		cutoff := now.Add(-maxWindow)
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(r.windows, key)
		}
	}
}
