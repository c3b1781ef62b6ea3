package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

func insertMcast(t *testing.T, inst *Instance, seq uint32, source api.NodeID, payload []byte) {
	t.Helper()
	msg := wire.McastMessage{Seq: seq, RingID: inst.ringID, Source: source, Payload: payload}
	require.NoError(t, inst.regularBuf.Insert(seq, wire.EncodeMcastMessage(msg)))
}

func TestDeliverContiguous_NoOpWhileNotOperational(t *testing.T) {
	inst, _, deliver := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.membState = api.StateGather
	insertMcast(t, inst, 1, 2, []byte("a"))

	inst.deliverContiguous()

	assert.Empty(t, deliver.payloads())
	assert.EqualValues(t, 0, inst.myHighSeqDelivered)
}

func TestDeliverContiguous_DeliversInOrderAndStopsAtGap(t *testing.T) {
	inst, _, deliver := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.membState = api.StateOperational
	insertMcast(t, inst, 1, 2, []byte("one"))
	insertMcast(t, inst, 2, 2, []byte("two"))
	// seq 3 deliberately left absent.
	insertMcast(t, inst, 4, 2, []byte("four"))

	inst.deliverContiguous()

	payloads := deliver.payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, []byte("one"), payloads[0])
	assert.Equal(t, []byte("two"), payloads[1])
	assert.EqualValues(t, 2, inst.myHighSeqDelivered)
}

func TestDeliverContiguous_ResumesAfterGapFilled(t *testing.T) {
	inst, _, deliver := newTestInstance(t, 1, []api.NodeID{1, 2})
	inst.membState = api.StateOperational
	insertMcast(t, inst, 1, 2, []byte("one"))
	inst.deliverContiguous()
	require.Len(t, deliver.payloads(), 1)

	insertMcast(t, inst, 2, 2, []byte("two"))
	inst.deliverContiguous()

	payloads := deliver.payloads()
	require.Len(t, payloads, 2)
	assert.EqualValues(t, 2, inst.myHighSeqDelivered)
}
