package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is an in-process LRU bounded by total bytes.
type Memory struct {
	capacity int64

	mu    sync.Mutex
	size  int64
	items map[string]*list.Element
	lru   *list.List
	stats Stats
}

type memoryEntry struct {
	key    string
	value  []byte
	stored time.Time
}

// NewMemory creates an LRU holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get implements Tier.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.lru.MoveToFront(el)
	m.stats.Hits++
	return el.Value.(*memoryEntry).value, true
}

// Put implements Tier.
func (m *Memory) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > m.capacity {
		return ErrItemTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.remove(el)
	}
	for m.size+n > m.capacity && m.lru.Len() > 0 {
		m.remove(m.lru.Back())
		m.stats.Evictions++
	}
	m.items[key] = m.lru.PushFront(&memoryEntry{key: key, value: value, stored: time.Now()})
	m.size += n
	return nil
}

// Delete implements Tier.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.remove(el)
	}
	return nil
}

// Clear implements Tier.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.lru.Init()
	m.size = 0
	return nil
}

// Prune drops entries stored more than maxAge ago.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for el := m.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).stored.Before(cutoff) {
			m.remove(el)
			pruned++
		}
		el = prev
	}
	return pruned
}

// Stats implements Tier.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Level = LevelMemory
	s.Capacity = m.capacity
	s.Size = m.size
	s.Items = len(m.items)
	return s
}

// remove must be called with m.mu held.
func (m *Memory) remove(el *list.Element) {
	e := m.lru.Remove(el).(*memoryEntry)
	delete(m.items, e.key)
	m.size -= int64(len(e.value))
}
