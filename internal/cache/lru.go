// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

// lruList orders entries by use, most recent at the head. Not thread-safe.
type lruList[K comparable, V any] struct {
	head, tail *entry[K, V]
}

func (l *lruList[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
}

func (l *lruList[K, V]) moveToFront(e *entry[K, V]) {
	if e == l.head {
		return
	}
	l.remove(e)
	l.pushFront(e)
}

func (l *lruList[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// removeOldest unlinks and returns the tail. The list must not be empty.
func (l *lruList[K, V]) removeOldest() *entry[K, V] {
	e := l.tail
	l.remove(e)
	return e
}
