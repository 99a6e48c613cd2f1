package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type lruEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// LRUCache is an in-process Cache with per-key TTL. The least recently used key
// is evicted once maxSize keys are held.
type LRUCache struct {
	clock clockwork.Clock

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
	closed  bool
}

var _ Cache = (*LRUCache)(nil)

func NewLRUCache(maxSize int, clock clockwork.Clock) *LRUCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LRUCache{
		clock:   clock,
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
	}
}

func (c *LRUCache) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("cache is closed")
	}
	return nil
}

func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.items = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

func (c *LRUCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.lookup(key)
	if entry == nil {
		return "", nil
	}
	c.order.MoveToFront(c.items[key])
	return entry.value, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("cache is closed")
	}

	exp := time.Time{}
	if ttl > 0 {
		exp = c.clock.Now().Add(ttl)
	}
	text := stringValue(value)

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = text
		entry.expiresAt = exp
		c.order.MoveToFront(elem)
		return nil
	}

	elem := c.order.PushFront(&lruEntry{key: key, value: text, expiresAt: exp})
	c.items[key] = elem
	if len(c.items) > c.maxSize {
		c.evictOldest()
	}
	return nil
}

func (c *LRUCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if elem, ok := c.items[key]; ok {
			c.removeElement(elem)
		}
	}
	return nil
}

func (c *LRUCache) Exists(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range keys {
		if c.lookup(key) != nil {
			n++
		}
	}
	return n, nil
}

func (c *LRUCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.lookup(key)
	switch {
	case entry == nil:
		return -2, nil
	case entry.expiresAt.IsZero():
		return -1, nil
	}
	return entry.expiresAt.Sub(c.clock.Now()), nil
}

// Len returns the number of keys held, expired ones included.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// lookup returns the live entry for key and drops it if it has expired.
func (c *LRUCache) lookup(key string) *lruEntry {
	elem, ok := c.items[key]
	if !ok {
		return nil
	}
	entry := elem.Value.(*lruEntry)
	if !entry.expiresAt.IsZero() && !c.clock.Now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return nil
	}
	return entry
}

func (c *LRUCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
}

func (c *LRUCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	delete(c.items, entry.key)
	c.order.Remove(elem)
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
