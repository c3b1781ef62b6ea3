// Package buffer implements SortedBuffer: a
// fixed-capacity circular array indexed by monotonically increasing
// sequence number. It is owned exclusively by the single event loop
// — it needs no
// atomics, since nothing else ever touches it concurrently.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package buffer

import "github.com/momentics/totem-srp/api"

// SortedBuffer maps seq in [headSeq, headSeq+C) to an optional payload.
type SortedBuffer struct {
	slots   [][]byte
	inUse   []bool
	mask    uint64
	headSeq uint32
}

// New allocates a SortedBuffer with capacity (must be a power of two).
func New(capacity uint64) *SortedBuffer {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("buffer: capacity must be a power of two")
	}
	return &SortedBuffer{
		slots: make([][]byte, capacity),
		inUse: make([]bool, capacity),
		mask:  capacity - 1,
	}
}

func (b *SortedBuffer) slot(seq uint32) int {
	return int((uint64(seq-b.headSeq) + uint64(b.headSeq)) & b.mask)
}

// inWindow reports whether seq falls within [headSeq, headSeq+capacity).
func (b *SortedBuffer) inWindow(seq uint32) bool {
	dist := uint64(seq - b.headSeq)
	return dist <= b.mask
}

// Insert stores payload at seq. It is the caller's responsibility not to
// retain and mutate payload afterward; SortedBuffer takes ownership until
// release.
func (b *SortedBuffer) Insert(seq uint32, payload []byte) error {
	if !b.inWindow(seq) {
		return api.ErrOutOfRange
	}
	idx := b.slot(seq)
	if b.inUse[idx] {
		return api.ErrAlreadyPresent
	}
	b.slots[idx] = payload
	b.inUse[idx] = true
	return nil
}

// Get returns the payload at seq, if present.
func (b *SortedBuffer) Get(seq uint32) ([]byte, bool) {
	if !b.inWindow(seq) {
		return nil, false
	}
	idx := b.slot(seq)
	if !b.inUse[idx] {
		return nil, false
	}
	return b.slots[idx], true
}

// InUse reports whether seq holds a stored payload.
func (b *SortedBuffer) InUse(seq uint32) bool {
	if !b.inWindow(seq) {
		return false
	}
	return b.inUse[b.slot(seq)]
}

// ReleaseUpTo advances headSeq past seq, clearing freed slots. It is
// idempotent; calling it with seq < headSeq is a no-op.
func (b *SortedBuffer) ReleaseUpTo(seq uint32) {
	if int32(seq-b.headSeq) < 0 {
		return
	}
	for b.headSeq <= seq {
		idx := b.slot(b.headSeq)
		b.slots[idx] = nil
		b.inUse[idx] = false
		b.headSeq++
		if b.headSeq == 0 {
			// seq wrapped past the uint32 space; headSeq==0 also means "no
			// messages released yet" so stop here rather than looping once
			// more with seq==math.MaxUint32.
			break
		}
	}
}

// Reinit clears all slots and resets the window to start at newHeadSeq
// (used on entry to Recovery).
func (b *SortedBuffer) Reinit(newHeadSeq uint32) {
	for i := range b.slots {
		b.slots[i] = nil
		b.inUse[i] = false
	}
	b.headSeq = newHeadSeq
}

// HeadSeq returns the oldest sequence the buffer can currently hold.
func (b *SortedBuffer) HeadSeq() uint32 { return b.headSeq }

// Cap returns the fixed window size.
func (b *SortedBuffer) Cap() int { return len(b.slots) }
