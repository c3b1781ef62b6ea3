package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

func TestHandleToken_ForwardsToSuccessorAndIncrementsTokenSeq(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})

	tok := wire.Token{
		TokenSeq: 5,
		RingID:   inst.ringID,
	}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.EqualValues(t, 6, inst.myTokenSeq)

	sent := transport.sentOfType(api.SocketToken)
	require.Len(t, sent, 1)
	assert.EqualValues(t, 2, sent[0].addr)

	plaintext, err := inst.codec.Decrypt(sent[0].buf)
	require.NoError(t, err)
	forwarded, _, err := wire.DecodeOrfToken(plaintext)
	require.NoError(t, err)
	assert.EqualValues(t, 6, forwarded.TokenSeq)
}

func TestHandleToken_DiscardsForeignRing(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})

	foreign := inst.ringID
	foreign.Rep = 99
	tok := wire.Token{TokenSeq: 5, RingID: foreign}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.EqualValues(t, 0, inst.myTokenSeq)
	assert.Empty(t, transport.sentOfType(api.SocketToken))
}

func TestHandleToken_DuplicateIsDroppedWithoutForwarding(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.myTokenSeq = 10
	inst.myTokenSeqSeen = true

	tok := wire.Token{TokenSeq: 10, RingID: inst.ringID}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.EqualValues(t, 10, inst.myTokenSeq)
	assert.Empty(t, transport.sentOfType(api.SocketToken))
}

func TestHandleToken_RepresentativeHoldsWhenQuiescent(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.ringID.Rep = 1 // self is representative
	inst.mySeqUnchanged = inst.cfg.SeqnoUnchangedConst
	inst.myHighSeqReceived = 0

	tok := wire.Token{TokenSeq: 1, RingID: inst.ringID, Seq: 0}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.True(t, inst.hasToken)
	assert.Empty(t, transport.sentOfType(api.SocketToken))
}

func TestHandleToken_AcceptsFirstTokenWithZeroSeq(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})

	tok := wire.Token{TokenSeq: 0, RingID: inst.ringID}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.True(t, inst.myTokenSeqSeen)
	require.Len(t, transport.sentOfType(api.SocketToken), 1)
}

func TestSendInitialToken_BootstrapsZeroSeqOrfToken(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})

	inst.sendInitialToken()

	sent := transport.sentOfType(api.SocketToken)
	require.Len(t, sent, 1)
	assert.EqualValues(t, 2, sent[0].addr)

	plaintext, err := inst.codec.Decrypt(sent[0].buf)
	require.NoError(t, err)
	tok, _, err := wire.DecodeOrfToken(plaintext)
	require.NoError(t, err)
	assert.EqualValues(t, 0, tok.TokenSeq)
	assert.EqualValues(t, 0, tok.Seq)
	assert.EqualValues(t, 1, tok.RetransFlag)
	assert.Equal(t, inst.ringID, tok.RingID)

	// the originator itself must not treat this as "already seen" — in a
	// single-node ring the bootstrap token routes straight back to self and
	// must still be accepted on that first inbound receipt.
	assert.False(t, inst.myTokenSeqSeen)
}

func TestHandleToken_DroppedDuringCommit(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.membState = api.StateCommit

	tok := wire.Token{TokenSeq: 1, RingID: inst.ringID}
	inst.handleToken(wire.EncodeOrfToken(tok))

	assert.EqualValues(t, 0, inst.myTokenSeq)
	assert.Empty(t, transport.sentOfType(api.SocketToken))
}
