package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. A janitor goroutine sweeps expired
// entries so an idle process does not hold stale bodies forever.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	stop    chan struct{}
	once    sync.Once
}

// NewMemory returns a Memory cache whose janitor runs every interval.
// A non-positive interval disables sweeping; expired entries are still
// never served, only kept until overwritten.
func NewMemory(interval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go m.janitor(interval)
	}
	return m
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expires.IsZero() && now.After(e.expires) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expires: expires}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
