package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

func TestDrainSendQueue_TransmitsQueuedMessageAndAdvancesAru(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})

	require.NoError(t, inst.Mcast([]byte("hello"), api.GuaranteeAgreed))

	tok := &wire.Token{RingID: inst.ringID}
	inst.drainSendQueue(tok)

	assert.EqualValues(t, 1, tok.Seq)
	assert.EqualValues(t, 1, inst.myAru)

	encoded, ok := inst.regularBuf.Get(1)
	require.True(t, ok)
	msg, _, err := wire.DecodeMcastMessage(encoded)
	require.NoError(t, err)
	assert.EqualValues(t, 1, msg.Source)
	assert.Equal(t, []byte("hello"), msg.Payload)

	sent := transport.sentOfType(api.SocketMcast)
	require.Len(t, sent, 1)

	snap := inst.Stats.GetSnapshot()
	assert.EqualValues(t, 1, snap["stats_mcast_sent"])
}

func TestDrainSendQueue_BrakesWhenAruLagsTooFar(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	require.NoError(t, inst.Mcast([]byte("hello"), api.GuaranteeAgreed))

	inst.myLastAru = 0
	tok := &wire.Token{RingID: inst.ringID, Seq: inst.cfg.MissingMcastWindow + 10, Aru: 0}
	inst.drainSendQueue(tok)

	assert.Empty(t, transport.sentOfType(api.SocketMcast))
	assert.EqualValues(t, 1, inst.newMsgQueue.Len())
}

func TestServiceRetransmits_ResendsStoredMessageAndClearsEntry(t *testing.T) {
	inst, transport, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	require.NoError(t, inst.Mcast([]byte("payload"), api.GuaranteeAgreed))
	tok := &wire.Token{RingID: inst.ringID}
	inst.drainSendQueue(tok)

	rtrTok := &wire.Token{
		RingID:  inst.ringID,
		RtrList: []wire.RtrItem{{RingID: inst.ringID, Seq: 1}},
	}
	inst.serviceRetransmits(rtrTok)

	assert.Empty(t, rtrTok.RtrList)
	sent := transport.sentOfType(api.SocketMcast)
	// one from the original multicast, one from the retransmit.
	assert.Len(t, sent, 2)

	snap := inst.Stats.GetSnapshot()
	assert.EqualValues(t, 1, snap["stats_remcasts"])
}

func TestAddLocalGaps_RecordsMissingSeqsWithinWindow(t *testing.T) {
	inst, _, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.myAru = 0
	inst.myHighSeqReceived = 3
	// nothing in regularBuf: seqs 1..3 are all gaps.

	tok := &wire.Token{RingID: inst.ringID}
	inst.addLocalGaps(tok)

	require.Len(t, tok.RtrList, 3)
	assert.EqualValues(t, 1, tok.RtrList[0].Seq)
	assert.EqualValues(t, 3, tok.RtrList[2].Seq)
}

func TestAddLocalGaps_SkipsSeqsAlreadyOnRtrList(t *testing.T) {
	inst, _, _ := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.myAru = 0
	inst.myHighSeqReceived = 2

	tok := &wire.Token{
		RingID:  inst.ringID,
		RtrList: []wire.RtrItem{{RingID: inst.ringID, Seq: 1}},
	}
	inst.addLocalGaps(tok)

	require.Len(t, tok.RtrList, 2)
	assert.EqualValues(t, 1, tok.RtrList[0].Seq)
	assert.EqualValues(t, 2, tok.RtrList[1].Seq)
}
