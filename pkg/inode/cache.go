package inode

import (
	. "github.com/multios/mfs/pkg/types"
)

// Cache is a fixed-capacity LRU over inode records. Entries come from a
// preallocated pool; eviction hands the displaced record back through an
// out-parameter so the caller can decide whether it needs writing.
type Cache struct {
	head   *entry
	tail   *entry
	lookup map[Ino]*entry
	pool   []entry
	length int
}

type entry struct {
	prev  *entry
	next  *entry
	value Inode
}

func NewCache(capacity int) *Cache {
	return &Cache{
		lookup: make(map[Ino]*entry),
		pool:   make([]entry, capacity),
	}
}

func (c *Cache) Get(ino Ino, out *Inode) bool {
	e, exists := c.lookup[ino]
	if !exists {
		return false
	}
	c.moveFront(e)
	*out = e.value
	return true
}

// Push inserts or refreshes a record; when the cache is full it reports
// the evicted record through `evicted` and returns true.
func (c *Cache) Push(inode *Inode, evicted *Inode) (evict bool) {
	if e, exists := c.lookup[inode.Ino]; exists {
		c.moveFront(e)
		e.value = *inode
		return false
	}

	e := c.alloc()
	if e == nil {
		// pool exhausted: reuse the least-recently-used entry
		*evicted = c.tail.value
		delete(c.lookup, evicted.Ino)
		e = c.tail
		c.unlink(e)
		if c.tail == e {
			c.tail = e.prev
		}
		evict = true
	}
	if c.tail == nil {
		c.tail = e
	}
	e.value = *inode
	c.lookup[inode.Ino] = e
	c.moveFront(e)
	return
}

// Remove drops a record, reporting it through `removed`.
func (c *Cache) Remove(ino Ino, removed *Inode) bool {
	e := c.lookup[ino]
	if e == nil {
		return false
	}
	delete(c.lookup, ino)
	*removed = e.value
	e.value = Inode{}

	c.unlink(e)
	if c.head == e {
		c.head = e.next
	}
	if c.tail == e {
		c.tail = e.prev
	}

	// park the wiped entry at the tail for reuse
	e.prev = c.tail
	e.next = nil
	if c.tail != nil {
		c.tail.next = e
	}
	c.tail = e
	if c.head == nil {
		c.head = e
	}
	return true
}

func (c *Cache) alloc() *entry {
	if c.length >= len(c.pool) {
		return nil
	}
	e := &c.pool[c.length]
	c.length++
	return e
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
}

func (c *Cache) moveFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}
