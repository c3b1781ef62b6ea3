package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/wire"
)

func TestEncodeDecodeMembJoin(t *testing.T) {
	orig := wire.MembJoin{
		RingSeq:    4,
		ProcList:   []api.NodeID{1, 2, 3},
		FailedList: []api.NodeID{2},
	}
	buf := wire.EncodeMembJoin(orig)
	got, swap, err := wire.DecodeMembJoin(buf)
	require.NoError(t, err)
	require.False(t, swap)
	require.Equal(t, orig.RingSeq, got.RingSeq)
	require.Equal(t, orig.ProcList, got.ProcList)
	require.Equal(t, orig.FailedList, got.FailedList)
}

func TestEncodeDecodeMembCommitToken(t *testing.T) {
	orig := wire.CommitToken{
		TokenSeq:  1,
		RingID:    api.RingID{Rep: 1, Seq: 4},
		MembIndex: 0,
		AddrList:  []api.NodeID{1, 2},
		PerMember: []wire.CommitMemb{
			{RingID: api.RingID{Rep: 1, Seq: 0}, Aru: 10, HighDelivered: 10, ReceivedFlag: true},
			{RingID: api.RingID{Rep: 2, Seq: 0}, Aru: 8, HighDelivered: 9, ReceivedFlag: false},
		},
	}
	buf := wire.EncodeMembCommitToken(orig)
	got, _, err := wire.DecodeMembCommitToken(buf)
	require.NoError(t, err)
	require.Equal(t, orig.AddrList, got.AddrList)
	require.Len(t, got.PerMember, 2)
	require.True(t, got.PerMember[0].ReceivedFlag)
	require.False(t, got.PerMember[1].ReceivedFlag)
}
