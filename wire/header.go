package wire

import (
	"encoding/binary"
	"fmt"
)

// MessageHeader is the common prefix of every payload.
type MessageHeader struct {
	Type           uint8
	Encapsulated   uint8
	EndianDetector uint16
}

const headerLen = 4

func putHeader(buf []byte, order binary.ByteOrder, h MessageHeader) {
	buf[0] = h.Type
	buf[1] = h.Encapsulated
	order.PutUint16(buf[2:4], h.EndianDetector)
}

// detectOrder reads the endian-detector field without assuming an order and
// returns the ByteOrder the sender actually used, or an error if neither
// byte order yields the known constant.
func detectOrder(buf []byte) (binary.ByteOrder, bool, error) {
	if len(buf) < headerLen {
		return nil, false, fmt.Errorf("wire: header too short: %d bytes", len(buf))
	}
	if binary.LittleEndian.Uint16(buf[2:4]) == EndianDetector {
		return binary.LittleEndian, false, nil
	}
	if binary.BigEndian.Uint16(buf[2:4]) == EndianDetector {
		return binary.BigEndian, true, nil
	}
	return nil, false, fmt.Errorf("wire: unrecognized endian detector")
}

// nativeOrder is the byte order this process encodes with. Every receiver
// detects it independently via detectOrder, so the choice here is arbitrary
// as long as it is consistent.
var nativeOrder binary.ByteOrder = binary.LittleEndian

func parseHeader(buf []byte) (MessageHeader, binary.ByteOrder, bool, error) {
	order, swapped, err := detectOrder(buf)
	if err != nil {
		return MessageHeader{}, nil, false, err
	}
	h := MessageHeader{
		Type:           buf[0],
		Encapsulated:   buf[1],
		EndianDetector: order.Uint16(buf[2:4]),
	}
	return h, order, swapped, nil
}

// PeekType reads just the message-type byte, for dispatch before a caller
// commits to a specific Decode* call.
func PeekType(buf []byte) (uint8, bool, error) {
	h, _, swapped, err := parseHeader(buf)
	if err != nil {
		return 0, false, err
	}
	return h.Type, swapped, nil
}
