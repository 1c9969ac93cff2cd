package btree

import "container/list"

// cacheCapacity bounds the number of decoded nodes the cache retains.
const cacheCapacity = 3

// cacheEntry pairs a decoded node with its position in the recency list.
type cacheEntry struct {
	id      uint64
	n       *node
	element *list.Element
}

// nodeCache is a small, fixed-capacity, recency-ordered cache from block id
// to decoded node. It is read-through: a miss loads, decodes, and inserts.
// Every write to the underlying device invalidates the whole cache, since a
// split rewrites several nodes in sequence and a stale decoded copy of any
// of them would corrupt the next traversal.
type nodeCache struct {
	entries map[uint64]*cacheEntry
	order   *list.List // front = most recently used
}

func newNodeCache() *nodeCache {
	return &nodeCache{
		entries: make(map[uint64]*cacheEntry),
		order:   list.New(),
	}
}

// get returns the cached node for id, if present, promoting it to
// most-recently-used.
func (c *nodeCache) get(id uint64) (*node, bool) {
	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(entry.element)
	return entry.n, true
}

// put inserts n under id, evicting the least-recently-used entry if the
// cache is already at capacity.
func (c *nodeCache) put(id uint64, n *node) {
	if entry, ok := c.entries[id]; ok {
		entry.n = n
		c.order.MoveToFront(entry.element)
		return
	}

	if c.order.Len() >= cacheCapacity {
		c.evictOldest()
	}

	entry := &cacheEntry{id: id, n: n}
	entry.element = c.order.PushFront(entry)
	c.entries[id] = entry
}

func (c *nodeCache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.entries, entry.id)
}

// invalidateAll clears the entire cache. Called after every node or header
// write.
func (c *nodeCache) invalidateAll() {
	c.entries = make(map[uint64]*cacheEntry)
	c.order.Init()
}
