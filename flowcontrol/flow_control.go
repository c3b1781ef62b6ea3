// Package flowcontrol implements the per-rotation send budget carried on
// the token: transmits_allowed accounting and the brake that stops new
// multicasts once the hole-tracking window is at risk of overflow.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package flowcontrol

// FlowControl tracks the running fcc (flow control count) on a token and
// derives how many sends are permitted this rotation.
type FlowControl struct {
	window             uint32
	missingMcastWindow uint32

	lastRoundSent uint32
}

// New builds a FlowControl with the given group window and hole-window
// bound (missing_mcast_window, default 128).
func New(window, missingMcastWindow uint32) *FlowControl {
	return &FlowControl{window: window, missingMcastWindow: missingMcastWindow}
}

// TransmitsAllowed computes window - fcc clamped to [0, window].
func (f *FlowControl) TransmitsAllowed(fcc uint32) uint32 {
	if fcc >= f.window {
		return 0
	}
	return f.window - fcc
}

// Braking reports whether the hole-tracking window is at risk of
// overflow: brake_seq = min(groupAru, myLastAru); if
// brake_seq + missing_mcast_window < tokenSeq, new multicasts must stop
// this rotation (retransmits are still permitted).
func (f *FlowControl) Braking(groupAru, myLastAru, tokenSeq uint32) bool {
	brakeSeq := groupAru
	if myLastAru < brakeSeq {
		brakeSeq = myLastAru
	}
	return brakeSeq+f.missingMcastWindow < tokenSeq
}

// NextFcc computes the token's updated fcc after a rotation in which
// mcastSent new multicasts and remcastSent retransmits were carried.
//
//	fcc' = fcc + mcastSent + remcastSent - lastRoundSent
//
// lastRoundSent is this node's own prior contribution, subtracted so a
// token circulating the ring doesn't double count; it is reset to the
// sum just computed for the next rotation.
func (f *FlowControl) NextFcc(fcc, mcastSent, remcastSent uint32) uint32 {
	total := mcastSent + remcastSent
	next := fcc + total
	if next < f.lastRoundSent {
		next = 0
	} else {
		next -= f.lastRoundSent
	}
	f.lastRoundSent = total
	return next
}
