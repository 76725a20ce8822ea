package pipeline

import "container/list"

// lruMap is an insertion-ordered map with touch-on-access semantics,
// backed by a doubly-linked list. Access or insertion moves the key to
// the most-recently-used position; inserting beyond maxSize evicts the
// least-recently-used entry.
type lruMap[K comparable, V any] struct {
	maxSize int
	ll      *list.List
	items   map[K]*list.Element
}

type lruEntry[K comparable, V any] struct {
	key K
	val V
}

func newLRUMap[K comparable, V any](maxSize int) *lruMap[K, V] {
	return &lruMap[K, V]{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[K]*list.Element),
	}
}

// get returns the value for key, touching it.
func (m *lruMap[K, V]) get(key K) (V, bool) {
	if el, ok := m.items[key]; ok {
		m.ll.MoveToFront(el)
		return el.Value.(*lruEntry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// put inserts or updates key, touching it, and evicts the LRU entry
// when over capacity.
func (m *lruMap[K, V]) put(key K, val V) {
	if el, ok := m.items[key]; ok {
		m.ll.MoveToFront(el)
		el.Value.(*lruEntry[K, V]).val = val
		return
	}
	m.items[key] = m.ll.PushFront(&lruEntry[K, V]{key: key, val: val})
	if m.maxSize > 0 && m.ll.Len() > m.maxSize {
		oldest := m.ll.Back()
		m.ll.Remove(oldest)
		delete(m.items, oldest.Value.(*lruEntry[K, V]).key)
	}
}

func (m *lruMap[K, V]) contains(key K) bool {
	_, ok := m.items[key]
	return ok
}

func (m *lruMap[K, V]) len() int {
	return m.ll.Len()
}
