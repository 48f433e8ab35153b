package apperr

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// Breaker counts consecutive failures and fails fast once the threshold is
// reached. After the cool-down a single trial call is let through; its result
// decides whether the breaker closes again.
type Breaker struct {
	mu        sync.Mutex
	clk       clock.Clock
	threshold int
	cooldown  time.Duration

	failures int
	openedAt time.Time
	state    BreakerState
}

func NewBreaker(threshold int, cooldown time.Duration, clk clock.Clock) *Breaker {
	return &Breaker{
		clk:       clk,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call may proceed. In the open state it flips to
// half-open once the cool-down has elapsed, admitting one trial call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.clk.Now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	case BreakerHalfOpen:
		// One trial in flight at a time.
		return false
	}
	return false
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = BreakerClosed
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = b.clk.Now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = b.clk.Now()
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerSet holds one breaker per error category.
type BreakerSet struct {
	mu       sync.Mutex
	clk      clock.Clock
	breakers map[Category]*Breaker
}

func NewBreakerSet(clk clock.Clock) *BreakerSet {
	return &BreakerSet{clk: clk, breakers: make(map[Category]*Breaker)}
}

func (s *BreakerSet) For(cat Category) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[cat]
	if !ok {
		b = NewBreaker(5, 5*time.Minute, s.clk)
		s.breakers[cat] = b
	}
	return b
}
