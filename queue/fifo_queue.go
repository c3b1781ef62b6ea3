// Package queue implements FifoQueue, the bounded pending-message and
// retransmit queues driven by the event loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package queue

import (
	eapachequeue "github.com/eapache/queue"

	"github.com/momentics/totem-srp/api"
)

// FifoQueue is a bounded FIFO of T, backed by eapache/queue's amortized
// O(1) ring buffer. It satisfies api.Ring[T].
type FifoQueue[T any] struct {
	q        *eapachequeue.Queue
	capacity int
}

// NewFifoQueue allocates a FifoQueue bounded at capacity items.
func NewFifoQueue[T any](capacity int) *FifoQueue[T] {
	return &FifoQueue[T]{q: eapachequeue.New(), capacity: capacity}
}

// Enqueue adds item, returning false if the queue is at capacity.
func (f *FifoQueue[T]) Enqueue(item T) bool {
	if f.capacity > 0 && f.q.Length() >= f.capacity {
		return false
	}
	f.q.Add(item)
	return true
}

// Dequeue removes and returns the oldest item, false if empty.
func (f *FifoQueue[T]) Dequeue() (T, bool) {
	var zero T
	if f.q.Length() == 0 {
		return zero, false
	}
	v := f.q.Peek()
	f.q.Remove()
	item, ok := v.(T)
	if !ok {
		return zero, false
	}
	return item, true
}

// Peek returns the oldest item without removing it.
func (f *FifoQueue[T]) Peek() (T, bool) {
	var zero T
	if f.q.Length() == 0 {
		return zero, false
	}
	item, ok := f.q.Peek().(T)
	if !ok {
		return zero, false
	}
	return item, true
}

// Len returns the number of items currently queued.
func (f *FifoQueue[T]) Len() int { return f.q.Length() }

// Cap returns the configured bound (0 means unbounded).
func (f *FifoQueue[T]) Cap() int { return f.capacity }

var _ api.Ring[int] = (*FifoQueue[int])(nil)
