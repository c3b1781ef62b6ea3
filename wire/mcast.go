package wire

import (
	"fmt"

	"github.com/momentics/totem-srp/api"
)

// McastMessage is the decoded form of a multicast application payload.
type McastMessage struct {
	Seq       uint32
	RingID    api.RingID
	Source    api.NodeID
	Guarantee uint32
	Payload   []byte
}

const mcastFixedLen = headerLen + 4 + 4 + 8 + 4 + 4

// EncodeMcastMessage serializes m, appending Payload verbatim (it is opaque
// to the ring core).
func EncodeMcastMessage(m McastMessage) []byte {
	buf := make([]byte, mcastFixedLen+len(m.Payload))
	order := nativeOrder
	putHeader(buf, order, MessageHeader{Type: TypeMcast, EndianDetector: EndianDetector})
	off := headerLen
	order.PutUint32(buf[off:], m.Seq)
	off += 4
	order.PutUint32(buf[off:], uint32(m.RingID.Rep))
	off += 4
	order.PutUint64(buf[off:], m.RingID.Seq)
	off += 8
	order.PutUint32(buf[off:], uint32(m.Source))
	off += 4
	order.PutUint32(buf[off:], m.Guarantee)
	off += 4
	copy(buf[off:], m.Payload)
	return buf
}

// DecodeMcastMessage parses buf. The returned Payload slice aliases buf;
// callers that retain it past the lifetime of the receive buffer must copy.
func DecodeMcastMessage(buf []byte) (m McastMessage, swap bool, err error) {
	h, order, swapped, err := parseHeader(buf)
	if err != nil {
		return McastMessage{}, false, err
	}
	if h.Type != TypeMcast {
		return McastMessage{}, false, fmt.Errorf("wire: not a McastMessage (type=%d)", h.Type)
	}
	if len(buf) < mcastFixedLen {
		return McastMessage{}, false, fmt.Errorf("wire: McastMessage truncated")
	}
	off := headerLen
	m.Seq = order.Uint32(buf[off:])
	off += 4
	m.RingID.Rep = api.NodeID(order.Uint32(buf[off:]))
	off += 4
	m.RingID.Seq = order.Uint64(buf[off:])
	off += 8
	m.Source = api.NodeID(order.Uint32(buf[off:]))
	off += 4
	m.Guarantee = order.Uint32(buf[off:])
	off += 4
	m.Payload = buf[off:]
	return m, swapped, nil
}
