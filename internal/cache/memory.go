package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory stores entries in-process with per-entry TTLs.
type Memory struct {
	mu     sync.RWMutex
	items  map[string]entry
	groups map[string]map[string]struct{}
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items:  make(map[string]entry),
		groups: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value. A ttl <= 0 never expires.
func (m *Memory) Set(_ context.Context, group, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{value: raw, expiresAt: expiresAt}
	if m.groups[group] == nil {
		m.groups[group] = make(map[string]struct{})
	}
	m.groups[group][key] = struct{}{}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.groups[group] {
		delete(m.items, key)
	}
	delete(m.groups, group)
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)                { return false, nil }
func (Nop) Set(context.Context, string, string, any, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, string) error                      { return nil }
