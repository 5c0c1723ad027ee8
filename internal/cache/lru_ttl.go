// Package cache provides a small threadsafe LRU with per-entry TTL, used to
// keep repository tree listings warm between requests against the same ref.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type item[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRUTTL evicts by recency once maxEntries is exceeded and by age on read.
type LRUTTL[K comparable, V any] struct {
	mu         sync.Mutex
	order      *list.List
	elems      map[K]*list.Element
	maxEntries int
	ttl        time.Duration
}

func NewLRUTTL[K comparable, V any](maxEntries int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LRUTTL[K, V]{
		order:      list.New(),
		elems:      make(map[K]*list.Element),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elems[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*item[K, V])
	if time.Now().After(it.expiresAt) {
		c.order.Remove(el)
		delete(c.elems, key)
		return zero, false
	}
	c.order.MoveToFront(el)
	return it.value, true
}

func (c *LRUTTL[K, V]) Set(key K, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		it := el.Value.(*item[K, V])
		it.value = value
		it.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&item[K, V]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)})
	c.elems[key] = el
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.elems, oldest.Value.(*item[K, V]).key)
	}
}

func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
