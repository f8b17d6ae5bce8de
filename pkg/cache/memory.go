// Package cache stores encoded route results, in process or in Redis.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
	seq     uint64
}

// slot is a position in insertion order. It is stale once its key has been
// removed or re-inserted under a newer seq.
type slot struct {
	key string
	seq uint64
}

// Memory is an in-process cache with optional expiry and a size bound.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	order      []slot
	seq        uint64
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemory returns a Memory cache. ttl <= 0 disables expiry and
// maxEntries <= 0 disables the size bound.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if m.ttl > 0 {
		exp = m.now().Add(m.ttl)
	}
	e, ok := m.entries[key]
	if !ok {
		m.seq++
		e.seq = m.seq
		m.order = append(m.order, slot{key: key, seq: e.seq})
	}
	e.value, e.expires = value, exp
	m.entries[key] = e

	// Oldest live insertions go first.
	for m.maxEntries > 0 && len(m.entries) > m.maxEntries && len(m.order) > 0 {
		s := m.order[0]
		m.order = m.order[1:]
		if m.live(s) {
			delete(m.entries, s.key)
		}
	}
	if len(m.order) > 2*len(m.entries)+16 {
		m.compact()
	}
	return nil
}

func (m *Memory) live(s slot) bool {
	e, ok := m.entries[s.key]
	return ok && e.seq == s.seq
}

func (m *Memory) compact() {
	live := m.order[:0]
	for _, s := range m.order {
		if m.live(s) {
			live = append(live, s)
		}
	}
	m.order = live
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Purge removes every entry.
func (m *Memory) Purge(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	m.order = nil
	return nil
}
