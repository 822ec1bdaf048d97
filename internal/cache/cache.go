// Package cache provides the write-through record caches used by the store
// adapters.
package cache

import "sync"

// Cache maps keys to values. Implementations must be safe for concurrent use.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Invalidate(key K)
	Clear()
}

// Map is a Cache backed by a map guarded by a RWMutex.
type Map[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{items: make(map[K]V)}
}

// Get returns the cached value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Put stores value under key.
func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
}

// Invalidate drops key.
func (m *Map[K, V]) Invalidate(key K) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Clear drops every entry.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	m.items = make(map[K]V)
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Nop never stores anything. Adapters built without caching use it.
type Nop[K comparable, V any] struct{}

func (Nop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[K, V]) Put(K, V)      {}
func (Nop[K, V]) Invalidate(K) {}
func (Nop[K, V]) Clear()       {}
