package memory

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded key-value store keyed by normalized query text.
// Eviction is insertion-order (FIFO): when the cache is at capacity the
// oldest-inserted entry is removed. A read does not refresh an entry's
// position — this is a deliberate choice, not LRU; see DESIGN.md.
//
// The mutex exists for concurrent hosts: two simultaneous misses for the
// same key must not both insert, or the one-entry-per-key invariant breaks.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest
}

type entry struct {
	key        string
	value      any
	insertedAt time.Time
}

const defaultCapacity = 50

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).value, true
}

// Put inserts or replaces a value. Replacing an existing key keeps its
// original position in the eviction order.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, value: value, insertedAt: time.Now()})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}
