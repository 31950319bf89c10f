package kv

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store with the same prefix-scan semantics as
// the SQLite implementation. Used in tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) GetByPrefix(prefix string) ([]Entry, error) {
	return m.collect(prefix, "", 0), nil
}

func (m *MemoryStore) Scan(prefix, cursor string, limit int) ([]Entry, string, error) {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	entries := m.collect(prefix, cursor, limit+1)
	if len(entries) > limit {
		entries = entries[:limit]
		return entries, entries[limit-1].Key, nil
	}
	return entries, "", nil
}

func (m *MemoryStore) collect(prefix, cursor string, limit int) []Entry {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if cursor != "" && k <= cursor {
			continue
		}
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := m.data[k]
		out := make([]byte, len(v))
		copy(out, v)
		entries = append(entries, Entry{Key: k, Value: out})
	}
	return entries
}
