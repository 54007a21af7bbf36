package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// =============================================================================
// MEMORY CACHE - Bounded LRU with TTL
// =============================================================================

const (
	DefaultMaxEntries = 1024
	DefaultTTL        = 5 * time.Minute
)

type memoryEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Memory is an in-process cache. When full, Set evicts the least recently
// used entry. A zero TTL disables expiry.
type Memory[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recently used
	items      map[string]*list.Element

	// Now is the clock used for expiry.
	Now func() time.Time
}

// NewMemory creates a cache. maxEntries <= 0 uses DefaultMaxEntries.
func NewMemory[V any](maxEntries int, ttl time.Duration) *Memory[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		Now:        time.Now,
	}
}

var _ Cache[string] = (*Memory[string])(nil)

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	el, ok := m.items[key]
	if !ok {
		return zero, false, nil
	}
	e := el.Value.(*memoryEntry[V])
	if m.expired(e) {
		m.removeElement(el)
		return zero, false, nil
	}
	m.order.MoveToFront(el)
	return e.value, true, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = m.Now().Add(m.ttl)
	}

	if el, ok := m.items[key]; ok {
		e := el.Value.(*memoryEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memoryEntry[V]{key: key, value: value, expiresAt: expiresAt})
	m.items[key] = el

	for m.order.Len() > m.maxEntries {
		m.removeElement(m.order.Back())
	}
	return nil
}

func (m *Memory[V]) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
	return nil
}

// Purge drops every expired entry.
func (m *Memory[V]) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if m.expired(el.Value.(*memoryEntry[V])) {
			m.removeElement(el)
			purged++
		}
		el = prev
	}
	return purged
}

// Len is the number of entries held, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory[V]) expired(e *memoryEntry[V]) bool {
	return !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt)
}

func (m *Memory[V]) removeElement(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*memoryEntry[V]).key)
}
