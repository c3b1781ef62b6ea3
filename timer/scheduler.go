// Package timer implements the event loop's timer wheel: token-loss,
// token-retransmit, gather-join, gather-consensus, and commit deadlines all
// arm through the same min-heap, driven by one cooperative Poll call per
// loop iteration rather than a background goroutine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package timer

import (
	"container/heap"
	"errors"

	"github.com/momentics/totem-srp/api"
)

// ErrCanceled is returned by Done/Err on a handle that was canceled before
// firing.
var ErrCanceled = errors.New("timer: canceled")

type entry struct {
	deadline int64
	seq      uint64 // tie-breaker, also doubles as a cheap generation check
	fn       func()
	canceled bool
	fired    bool
	index    int
	done     chan struct{}
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// handle is the Cancelable returned to callers.
type handle struct {
	e *entry
	s *Scheduler
}

func (h *handle) Cancel() error {
	if h.e.index < 0 || h.e.fired {
		return nil
	}
	h.e.canceled = true
	heap.Remove(&h.s.q, h.e.index)
	close(h.e.done)
	return nil
}

func (h *handle) Done() <-chan struct{} { return h.e.done }

func (h *handle) Err() error {
	select {
	case <-h.e.done:
		if h.e.canceled {
			return ErrCanceled
		}
		return nil
	default:
		return nil
	}
}

// Scheduler is a single-threaded timer heap. Every method must be called
// from the event loop goroutine; there is no internal locking.
type Scheduler struct {
	q       entryHeap
	now     int64
	nextSeq uint64
}

// New builds an empty Scheduler with the clock initialized to startNanos.
func New(startNanos int64) *Scheduler {
	return &Scheduler{now: startNanos}
}

// Now returns the scheduler's current notion of time, advanced only by
// SetNow (the event loop supplies the wall/monotonic clock).
func (s *Scheduler) Now() int64 { return s.now }

// SetNow advances the scheduler's clock; called once per event loop
// iteration before Poll.
func (s *Scheduler) SetNow(nowNanos int64) { s.now = nowNanos }

// Schedule arms fn to run delayNanos from the scheduler's current clock.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	e := &entry{
		deadline: s.now + delayNanos,
		seq:      s.nextSeq,
		fn:       fn,
		done:     make(chan struct{}),
	}
	s.nextSeq++
	heap.Push(&s.q, e)
	return &handle{e: e, s: s}, nil
}

// Cancel cancels a previously scheduled callback. Canceling twice, or
// canceling a handle that already fired, is a no-op.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	h, ok := c.(*handle)
	if !ok {
		return errors.New("timer: foreign Cancelable")
	}
	return h.Cancel()
}

// Poll runs every callback whose deadline is at or before the scheduler's
// current clock, in deadline order, and returns how many fired.
func (s *Scheduler) Poll() int {
	fired := 0
	for s.q.Len() > 0 && s.q[0].deadline <= s.now {
		e := heap.Pop(&s.q).(*entry)
		e.fired = true
		close(e.done)
		e.fn()
		fired++
	}
	return fired
}

// NextDeadline returns the earliest armed deadline and true, or (0, false)
// if nothing is scheduled. The event loop uses this to size its reactor
// poll timeout.
func (s *Scheduler) NextDeadline() (int64, bool) {
	if s.q.Len() == 0 {
		return 0, false
	}
	return s.q[0].deadline, true
}

var _ api.Scheduler = (*Scheduler)(nil)
