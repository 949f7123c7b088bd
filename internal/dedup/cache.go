// Package dedup suppresses repeated alerts for the same spot key within a
// time window.
package dedup

import (
	"sync"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
)

// DefaultEvictMultiplier is how many windows an entry outlives its last alert
// before it is purged.
const DefaultEvictMultiplier = 2

// Cache maps dedup keys to the time of their last alert.
//
// Entries are kept in a doubly linked list ordered by alert time, newest at
// the head. Recording an alert moves the entry to the head, so expired entries
// always collect at the tail and eviction stops at the first live one.
// Timestamps passed out of order only delay eviction; they never change the
// alert decision.
type Cache struct {
	mu         sync.Mutex
	entries    map[domain.DedupKey]*entry
	head       *entry // most recently alerted
	tail       *entry // least recently alerted
	multiplier int
}

type entry struct {
	key       domain.DedupKey
	alertedAt time.Time
	prev      *entry
	next      *entry
}

// New creates an empty cache. A multiplier below 1 uses DefaultEvictMultiplier.
func New(evictMultiplier int) *Cache {
	if evictMultiplier < 1 {
		evictMultiplier = DefaultEvictMultiplier
	}
	return &Cache{
		entries:    make(map[domain.DedupKey]*entry),
		multiplier: evictMultiplier,
	}
}

// ShouldAlert reports whether an alert for key is allowed at now. It is
// allowed when the key has never alerted or its last alert is at least window
// old; in that case now is recorded. Suppressed calls leave the stored time
// untouched so the window is anchored at the last alert, not the last sighting.
func (c *Cache) ShouldAlert(key domain.DedupKey, now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictBefore(now.Add(-window * time.Duration(c.multiplier)))

	if e, ok := c.entries[key]; ok {
		if now.Sub(e.alertedAt) < window {
			return false
		}
		e.alertedAt = now
		c.moveToFront(e)
		return true
	}

	e := &entry{key: key, alertedAt: now}
	c.entries[key] = e
	c.addToFront(e)
	return true
}

// Len returns the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictBefore drops entries alerted strictly before cutoff, walking from the tail.
func (c *Cache) evictBefore(cutoff time.Time) {
	for c.tail != nil && c.tail.alertedAt.Before(cutoff) {
		delete(c.entries, c.tail.key)
		c.remove(c.tail)
	}
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
