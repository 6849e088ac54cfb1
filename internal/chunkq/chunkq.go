// Package chunkq implements an unbounded FIFO queue, stored as a linked list
// of fixed-size chunks.
package chunkq

import (
	"sync"
)

// chunkSize is the number of values per node in the linked list.
const chunkSize = 128

// Queue is a FIFO queue of values of type T. The zero value is an empty
// queue, ready to use.
//
// Thread Safety: Queue is NOT thread-safe.
// The caller must provide external synchronization.
type Queue[T any] struct { // betteralign:ignore
	head   *chunk[T]
	tail   *chunk[T]
	pool   sync.Pool
	length int
}

// chunk is a fixed-size node, with read and write cursors so that push and
// pop are O(1).
type chunk[T any] struct {
	values  [chunkSize]T
	next    *chunk[T]
	readPos int
	pos     int
}

func (q *Queue[T]) newChunk() *chunk[T] {
	if v, ok := q.pool.Get().(*chunk[T]); ok {
		return v
	}
	return new(chunk[T])
}

// returnChunk recycles an exhausted chunk, clearing any values so they may be
// garbage collected.
func (q *Queue[T]) returnChunk(c *chunk[T]) {
	clear(c.values[:c.pos])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	q.pool.Put(c)
}

// Push adds a value to the back of the queue.
func (q *Queue[T]) Push(value T) {
	if q.tail == nil {
		q.tail = q.newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.values) {
		next := q.newChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.values[q.tail.pos] = value
	q.tail.pos++
	q.length++
}

// Pop removes and returns the value at the front of the queue, returning
// false if the queue is empty.
func (q *Queue[T]) Pop() (value T, ok bool) {
	if q.length == 0 {
		return value, false
	}

	if q.head.readPos >= q.head.pos {
		// exhausted, and not the tail, since length != 0
		old := q.head
		q.head = old.next
		q.returnChunk(old)
	}

	value = q.head.values[q.head.readPos]
	var zero T
	q.head.values[q.head.readPos] = zero
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			old := q.head
			q.head = old.next
			q.returnChunk(old)
		}
	}

	return value, true
}

// Front returns the value at the front of the queue without removing it.
func (q *Queue[T]) Front() (value T, ok bool) {
	if q.length == 0 {
		return value, false
	}
	c := q.head
	if c.readPos >= c.pos {
		c = c.next
	}
	return c.values[c.readPos], true
}

// Len returns the number of values in the queue.
func (q *Queue[T]) Len() int {
	return q.length
}

// Swap exchanges the contents of the two queues.
func (q *Queue[T]) Swap(other *Queue[T]) {
	q.head, other.head = other.head, q.head
	q.tail, other.tail = other.tail, q.tail
	q.length, other.length = other.length, q.length
}

// Clear removes all values from the queue.
func (q *Queue[T]) Clear() {
	for c := q.head; c != nil; {
		next := c.next
		q.returnChunk(c)
		c = next
	}
	q.head = nil
	q.tail = nil
	q.length = 0
}
