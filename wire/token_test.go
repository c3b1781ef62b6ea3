package wire_test

import (
	"bytes"
	"testing"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

func TestEncodeDecodeOrfToken(t *testing.T) {
	orig := wire.Token{
		Seq:         42,
		TokenSeq:    7,
		Aru:         40,
		AruAddr:     api.NodeID(3),
		RingID:      api.RingID{Rep: 1, Seq: 9},
		Fcc:         128,
		RetransFlag: 0,
		RtrList: []wire.RtrItem{
			{RingID: api.RingID{Rep: 1, Seq: 9}, Seq: 41},
		},
	}
	buf := wire.EncodeOrfToken(orig)
	got, swap, err := wire.DecodeOrfToken(buf)
	if err != nil {
		t.Fatal(err)
	}
	if swap {
		t.Fatal("unexpected byte swap on round trip")
	}
	if got.Seq != orig.Seq || got.TokenSeq != orig.TokenSeq || got.Aru != orig.Aru {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, orig)
	}
	if !got.RingID.Equal(orig.RingID) {
		t.Fatalf("ring id mismatch: %+v vs %+v", got.RingID, orig.RingID)
	}
	if len(got.RtrList) != 1 || got.RtrList[0].Seq != 41 {
		t.Fatalf("rtr_list mismatch: %+v", got.RtrList)
	}
}

func TestDecodeOrfTokenRejectsWrongType(t *testing.T) {
	mcast := wire.EncodeMcastMessage(wire.McastMessage{Payload: []byte("x")})
	if _, _, err := wire.DecodeOrfToken(mcast); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestEncodeDecodeMcastMessage(t *testing.T) {
	payload := []byte("hello totem")
	orig := wire.McastMessage{
		Seq:       5,
		RingID:    api.RingID{Rep: 2, Seq: 1},
		Source:    api.NodeID(2),
		Guarantee: 0,
		Payload:   payload,
	}
	buf := wire.EncodeMcastMessage(orig)
	got, _, err := wire.DecodeMcastMessage(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch: %q vs %q", got.Payload, payload)
	}
	if got.Source != orig.Source || got.Seq != orig.Seq {
		t.Errorf("header mismatch: %+v vs %+v", got, orig)
	}
}
