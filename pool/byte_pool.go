// Package pool implements a channel-backed recv-buffer pool so the event
// loop does not allocate a fresh datagram-sized slice on every socket read.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package pool

import "github.com/momentics/totem-srp/api"

var _ api.BytePool = (*BytePool)(nil)

// BytePool hands out fixed-size byte slices from a bounded free list,
// falling back to a fresh allocation when the list is empty or a caller
// asks for more than the pool's buffer size.
type BytePool struct {
	free chan []byte
	size int
}

// NewBytePool builds a pool of capacity buffers, each size bytes.
func NewBytePool(capacity, size int) *BytePool {
	p := &BytePool{free: make(chan []byte, capacity), size: size}
	for i := 0; i < capacity; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// Acquire returns a slice of at least n bytes, reused from the free list
// when possible.
func (p *BytePool) Acquire(n int) []byte {
	if n > p.size {
		return make([]byte, n)
	}
	select {
	case b := <-p.free:
		return b[:p.size]
	default:
		return make([]byte, p.size)
	}
}

// Release returns buf to the pool. Buffers smaller than the pool's size, or returned
// once the free list is full, are discarded rather than blocking the caller.
func (p *BytePool) Release(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	select {
	case p.free <- buf[:p.size]:
	default:
	}
}
