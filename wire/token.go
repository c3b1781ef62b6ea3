package wire

import (
	"fmt"

	"github.com/momentics/totem-srp/api"
)

// RtrItem is one retransmit-request entry carried on the token's rtr_list.
type RtrItem struct {
	RingID api.RingID
	Seq    uint32
}

const rtrItemLen = 4 + 8 + 4

// Token is the decoded form of the OrfToken payload.
type Token struct {
	Seq          uint32
	TokenSeq     uint32
	Aru          uint32
	AruAddr      api.NodeID
	RingID       api.RingID
	Fcc          uint16
	RetransFlag  uint32
	RtrList      []RtrItem
}

const tokenFixedLen = headerLen + 4 + 4 + 4 + 4 + 4 + 8 + 2 + 4 + 4

// EncodeOrfToken serializes t in this process's native byte order.
func EncodeOrfToken(t Token) []byte {
	n := tokenFixedLen + len(t.RtrList)*rtrItemLen
	buf := make([]byte, n)
	order := nativeOrder
	putHeader(buf, order, MessageHeader{Type: TypeOrfToken, EndianDetector: EndianDetector})
	off := headerLen
	order.PutUint32(buf[off:], t.Seq)
	off += 4
	order.PutUint32(buf[off:], t.TokenSeq)
	off += 4
	order.PutUint32(buf[off:], t.Aru)
	off += 4
	order.PutUint32(buf[off:], uint32(t.AruAddr))
	off += 4
	order.PutUint32(buf[off:], uint32(t.RingID.Rep))
	off += 4
	order.PutUint64(buf[off:], t.RingID.Seq)
	off += 8
	order.PutUint16(buf[off:], t.Fcc)
	off += 2
	order.PutUint32(buf[off:], t.RetransFlag)
	off += 4
	order.PutUint32(buf[off:], uint32(len(t.RtrList)))
	off += 4
	for _, item := range t.RtrList {
		order.PutUint32(buf[off:], uint32(item.RingID.Rep))
		off += 4
		order.PutUint64(buf[off:], item.RingID.Seq)
		off += 8
		order.PutUint32(buf[off:], item.Seq)
		off += 4
	}
	return buf
}

// DecodeOrfToken parses buf, detecting the sender's byte order. swap
// reports whether the sender used the opposite byte order from ours (the
// payload fields have already been corrected for it; swap is informational
// for the caller, following the receiver-side byte-swap contract).
func DecodeOrfToken(buf []byte) (t Token, swap bool, err error) {
	h, order, swapped, err := parseHeader(buf)
	if err != nil {
		return Token{}, false, err
	}
	if h.Type != TypeOrfToken {
		return Token{}, false, fmt.Errorf("wire: not an OrfToken (type=%d)", h.Type)
	}
	if len(buf) < tokenFixedLen {
		return Token{}, false, fmt.Errorf("wire: OrfToken truncated")
	}
	off := headerLen
	t.Seq = order.Uint32(buf[off:])
	off += 4
	t.TokenSeq = order.Uint32(buf[off:])
	off += 4
	t.Aru = order.Uint32(buf[off:])
	off += 4
	t.AruAddr = api.NodeID(order.Uint32(buf[off:]))
	off += 4
	t.RingID.Rep = api.NodeID(order.Uint32(buf[off:]))
	off += 4
	t.RingID.Seq = order.Uint64(buf[off:])
	off += 8
	t.Fcc = order.Uint16(buf[off:])
	off += 2
	t.RetransFlag = order.Uint32(buf[off:])
	off += 4
	entries := order.Uint32(buf[off:])
	off += 4
	if entries > RetransmitEntriesMax*4 {
		return Token{}, false, fmt.Errorf("wire: rtr_list_entries implausible: %d", entries)
	}
	need := off + int(entries)*rtrItemLen
	if len(buf) < need {
		return Token{}, false, fmt.Errorf("wire: OrfToken rtr_list truncated")
	}
	t.RtrList = make([]RtrItem, 0, entries)
	for i := uint32(0); i < entries; i++ {
		var item RtrItem
		item.RingID.Rep = api.NodeID(order.Uint32(buf[off:]))
		off += 4
		item.RingID.Seq = order.Uint64(buf[off:])
		off += 8
		item.Seq = order.Uint32(buf[off:])
		off += 4
		t.RtrList = append(t.RtrList, item)
	}
	return t, swapped, nil
}
