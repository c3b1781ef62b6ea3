// Package wire implements the datagram payload formats: the
// fixed-layout binary encodings of OrfToken, McastMessage, MembJoin and
// MembCommitToken, plus the endian-detector byte-swap convention shared by
// all of them.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wire

// Message type codes, the first byte of every MessageHeader.
const (
	TypeOrfToken        uint8 = 0
	TypeMcast           uint8 = 1
	TypeMembJoin        uint8 = 2
	TypeMembCommitToken uint8 = 3
)

// EndianDetector is the known constant written in native byte order; a
// receiver that reads back a swapped value knows to byte-swap every other
// multi-byte header field.
const EndianDetector uint16 = 0xFF22

// RetransmitEntriesMax caps the number of RtrItem entries carried on a
// single token (retransmit_entries_max default).
const RetransmitEntriesMax = 30
