package wire

import (
	"fmt"

	"github.com/momentics/totem-srp/api"
)

// CommitMemb is one member's reported state inside a MembCommitToken
// (used during the Commit to Recovery transition).
type CommitMemb struct {
	RingID        api.RingID
	Aru           uint32
	HighDelivered uint32
	ReceivedFlag  bool
}

const commitMembLen = 4 + 8 + 4 + 4 + 4

// CommitToken is the decoded form of a MembCommitToken payload.
type CommitToken struct {
	TokenSeq    uint32
	RingID      api.RingID
	RetransFlag uint32
	MembIndex   uint32
	AddrList    []api.NodeID
	PerMember   []CommitMemb
}

const commitFixedLen = headerLen + 4 + 4 + 8 + 4 + 4 + 4

func EncodeMembCommitToken(c CommitToken) []byte {
	n := commitFixedLen + 4*len(c.AddrList) + commitMembLen*len(c.PerMember)
	buf := make([]byte, n)
	order := nativeOrder
	putHeader(buf, order, MessageHeader{Type: TypeMembCommitToken, EndianDetector: EndianDetector})
	off := headerLen
	order.PutUint32(buf[off:], c.TokenSeq)
	off += 4
	order.PutUint32(buf[off:], uint32(c.RingID.Rep))
	off += 4
	order.PutUint64(buf[off:], c.RingID.Seq)
	off += 8
	order.PutUint32(buf[off:], c.RetransFlag)
	off += 4
	order.PutUint32(buf[off:], c.MembIndex)
	off += 4
	order.PutUint32(buf[off:], uint32(len(c.AddrList)))
	off += 4
	for _, id := range c.AddrList {
		order.PutUint32(buf[off:], uint32(id))
		off += 4
	}
	for _, m := range c.PerMember {
		order.PutUint32(buf[off:], uint32(m.RingID.Rep))
		off += 4
		order.PutUint64(buf[off:], m.RingID.Seq)
		off += 8
		order.PutUint32(buf[off:], m.Aru)
		off += 4
		order.PutUint32(buf[off:], m.HighDelivered)
		off += 4
		flag := uint32(0)
		if m.ReceivedFlag {
			flag = 1
		}
		order.PutUint32(buf[off:], flag)
		off += 4
	}
	return buf
}

func DecodeMembCommitToken(buf []byte) (c CommitToken, swap bool, err error) {
	h, order, swapped, err := parseHeader(buf)
	if err != nil {
		return CommitToken{}, false, err
	}
	if h.Type != TypeMembCommitToken {
		return CommitToken{}, false, fmt.Errorf("wire: not a MembCommitToken (type=%d)", h.Type)
	}
	if len(buf) < commitFixedLen {
		return CommitToken{}, false, fmt.Errorf("wire: MembCommitToken truncated")
	}
	off := headerLen
	c.TokenSeq = order.Uint32(buf[off:])
	off += 4
	c.RingID.Rep = api.NodeID(order.Uint32(buf[off:]))
	off += 4
	c.RingID.Seq = order.Uint64(buf[off:])
	off += 8
	c.RetransFlag = order.Uint32(buf[off:])
	off += 4
	c.MembIndex = order.Uint32(buf[off:])
	off += 4
	addrN := order.Uint32(buf[off:])
	off += 4
	need := off + 4*int(addrN)
	if len(buf) < need {
		return CommitToken{}, false, fmt.Errorf("wire: MembCommitToken addr_list truncated")
	}
	c.AddrList = make([]api.NodeID, addrN)
	for i := range c.AddrList {
		c.AddrList[i] = api.NodeID(order.Uint32(buf[off:]))
		off += 4
	}
	need = off + commitMembLen*int(addrN)
	if len(buf) < need {
		return CommitToken{}, false, fmt.Errorf("wire: MembCommitToken memb_list truncated")
	}
	c.PerMember = make([]CommitMemb, addrN)
	for i := range c.PerMember {
		var m CommitMemb
		m.RingID.Rep = api.NodeID(order.Uint32(buf[off:]))
		off += 4
		m.RingID.Seq = order.Uint64(buf[off:])
		off += 8
		m.Aru = order.Uint32(buf[off:])
		off += 4
		m.HighDelivered = order.Uint32(buf[off:])
		off += 4
		m.ReceivedFlag = order.Uint32(buf[off:]) != 0
		off += 4
		c.PerMember[i] = m
	}
	return c, swapped, nil
}
