// Package api defines the shared data model and collaborator contracts that
// the ring core depends on but does not itself implement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api

import "fmt"

// NodeID identifies a ring member. Zero is invalid.
type NodeID uint32

func (n NodeID) Valid() bool { return n != 0 }

func (n NodeID) String() string { return fmt.Sprintf("%d", uint32(n)) }

// RingID is (representative, sequence), ordered lexicographically on
// (Seq, Rep). It is monotonically non-decreasing on any single node across
// restarts.
type RingID struct {
	Rep NodeID
	Seq uint64
}

// Less reports whether r sorts before o.
func (r RingID) Less(o RingID) bool {
	if r.Seq != o.Seq {
		return r.Seq < o.Seq
	}
	return r.Rep < o.Rep
}

func (r RingID) Equal(o RingID) bool { return r.Rep == o.Rep && r.Seq == o.Seq }

func (r RingID) String() string { return fmt.Sprintf("(%d,%d)", uint32(r.Rep), r.Seq) }

// Guarantee tags the delivery semantics requested for a multicast message.
type Guarantee uint8

const (
	GuaranteeAgreed Guarantee = iota
	GuaranteeSafe
)

// MembState is the membership-protocol state machine's current phase.
type MembState int

const (
	StateOperational MembState = iota
	StateGather
	StateCommit
	StateRecovery
)

func (s MembState) String() string {
	switch s {
	case StateOperational:
		return "operational"
	case StateGather:
		return "gather"
	case StateCommit:
		return "commit"
	case StateRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// ConfChgType distinguishes the two confchg callbacks EVS requires around a
// membership transition.
type ConfChgType int

const (
	ConfChgTransitional ConfChgType = iota
	ConfChgRegular
)

// ConfChg is the membership-change notification handed to the collaborator
// application, used to fence delivery across a virtual-synchrony boundary.
type ConfChg struct {
	Type    ConfChgType
	Members []NodeID
	Left    []NodeID
	Joined  []NodeID
	RingID  RingID
}

// Deliverable receives totally-ordered application payloads and membership
// change notifications. Implemented by whatever sits above the ring (the
// packing/fragmentation layer is the normal caller).
type Deliverable interface {
	Deliver(source NodeID, payload []byte, endianSwap bool)
	ConfChg(cc ConfChg)
}
