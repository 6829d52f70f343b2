package reliability

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is a process-local TTL cache implementing domain.Cache. It
// backs CACHE_ONLY behavior in deployments without redis and in tests.
// Expired entries are purged opportunistically on writes.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	lastPurge time.Time
}

type memEntry struct {
	data    []byte
	expires time.Time
}

const purgeInterval = time.Minute

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), lastPurge: time.Now()}
}

func (m *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(e.expires) {
		delete(m.entries, key)
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

func (m *MemoryCache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{data: b, expires: time.Now().Add(time.Duration(ttlSec) * time.Second)}
	m.purgeLocked()
	return nil
}

func (m *MemoryCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache) purgeLocked() {
	now := time.Now()
	if now.Sub(m.lastPurge) < purgeInterval {
		return
	}
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastPurge = now
}
