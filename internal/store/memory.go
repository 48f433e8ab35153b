package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the single-instance KV backend. Values are copied on the way in
// and out so callers cannot alias the stored bytes.
type Memory struct {
	mu      sync.RWMutex
	clk     clock.Clock
	entries map[string]*entry
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		clk:     clk,
		entries: make(map[string]*entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(m.clk.Now()) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.newEntry(value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(m.clk.Now()) {
		return false, nil
	}
	m.entries[key] = m.newEntry(value, ttl)
	return true, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.clk.Now()) {
		return false, ErrNotFound
	}
	if !bytes.Equal(e.value, old) {
		return false, nil
	}
	m.entries[key] = m.newEntry(new, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.clk.Now()
	var out []string
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Memory) newEntry(value []byte, ttl time.Duration) *entry {
	v := make([]byte, len(value))
	copy(v, value)
	e := &entry{value: v}
	if ttl > 0 {
		e.expiresAt = m.clk.Now().Add(ttl)
	}
	return e
}
