// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

// entry is a cached value linked into its shard's recency ring.
type entry[K comparable, V any] struct {
	key        K
	value      V
	prev, next *entry[K, V]
}

// ring is a circular doubly linked list with a sentinel. root.next is the
// most recently used entry and root.prev the least. Not safe for concurrent
// use.
type ring[K comparable, V any] struct {
	root entry[K, V]
	n    int
}

func (r *ring[K, V]) init() {
	r.root.next = &r.root
	r.root.prev = &r.root
	r.n = 0
}

func (r *ring[K, V]) pushFront(e *entry[K, V]) {
	e.prev = &r.root
	e.next = r.root.next
	r.root.next.prev = e
	r.root.next = e
	r.n++
}

func (r *ring[K, V]) remove(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	r.n--
}

func (r *ring[K, V]) moveToFront(e *entry[K, V]) {
	if r.root.next == e {
		return
	}
	r.remove(e)
	r.pushFront(e)
}

// back returns the least recently used entry, or nil.
func (r *ring[K, V]) back() *entry[K, V] {
	if r.n == 0 {
		return nil
	}
	return r.root.prev
}
