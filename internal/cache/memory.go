package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	body    []byte
	expires time.Time
}

// Memory is an in-process PageCache for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, path, scope string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[pageKey(path, scope)]
	m.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		return nil, false, nil
	}
	return e.body, true, nil
}

func (m *Memory) Set(_ context.Context, path, scope string, body []byte, ttl time.Duration) error {
	e := entry{body: append([]byte(nil), body...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[pageKey(path, scope)] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, path string) error {
	prefix := pagePrefix(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}
