package wire

import (
	"fmt"

	"github.com/momentics/totem-srp/api"
)

// MembJoin is the decoded form of a join-message payload used during
// membership gather and consensus.
type MembJoin struct {
	RingSeq    uint64
	ProcList   []api.NodeID
	FailedList []api.NodeID
}

const membJoinFixedLen = headerLen + 4 + 4 + 8

func EncodeMembJoin(j MembJoin) []byte {
	n := membJoinFixedLen + 4*(len(j.ProcList)+len(j.FailedList))
	buf := make([]byte, n)
	order := nativeOrder
	putHeader(buf, order, MessageHeader{Type: TypeMembJoin, EndianDetector: EndianDetector})
	off := headerLen
	order.PutUint32(buf[off:], uint32(len(j.ProcList)))
	off += 4
	order.PutUint32(buf[off:], uint32(len(j.FailedList)))
	off += 4
	order.PutUint64(buf[off:], j.RingSeq)
	off += 8
	for _, id := range j.ProcList {
		order.PutUint32(buf[off:], uint32(id))
		off += 4
	}
	for _, id := range j.FailedList {
		order.PutUint32(buf[off:], uint32(id))
		off += 4
	}
	return buf
}

func DecodeMembJoin(buf []byte) (j MembJoin, swap bool, err error) {
	h, order, swapped, err := parseHeader(buf)
	if err != nil {
		return MembJoin{}, false, err
	}
	if h.Type != TypeMembJoin {
		return MembJoin{}, false, fmt.Errorf("wire: not a MembJoin (type=%d)", h.Type)
	}
	if len(buf) < membJoinFixedLen {
		return MembJoin{}, false, fmt.Errorf("wire: MembJoin truncated")
	}
	off := headerLen
	procN := order.Uint32(buf[off:])
	off += 4
	failN := order.Uint32(buf[off:])
	off += 4
	j.RingSeq = order.Uint64(buf[off:])
	off += 8
	need := off + 4*int(procN+failN)
	if need < 0 || len(buf) < need {
		return MembJoin{}, false, fmt.Errorf("wire: MembJoin lists truncated")
	}
	j.ProcList = make([]api.NodeID, procN)
	for i := range j.ProcList {
		j.ProcList[i] = api.NodeID(order.Uint32(buf[off:]))
		off += 4
	}
	j.FailedList = make([]api.NodeID, failN)
	for i := range j.FailedList {
		j.FailedList[i] = api.NodeID(order.Uint32(buf[off:]))
		off += 4
	}
	return j, swapped, nil
}
