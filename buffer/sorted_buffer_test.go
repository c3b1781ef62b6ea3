package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/api"
	"github.com/momentics/totem-srp/buffer"
)

func TestInsertGetRoundTrip(t *testing.T) {
	b := buffer.New(8)
	require.NoError(t, b.Insert(0, []byte("a")))
	require.NoError(t, b.Insert(1, []byte("b")))

	got, ok := b.Get(0)
	require.True(t, ok)
	require.Equal(t, []byte("a"), got)

	require.True(t, b.InUse(1))
	require.False(t, b.InUse(2))
}

func TestInsertAlreadyPresent(t *testing.T) {
	b := buffer.New(4)
	require.NoError(t, b.Insert(0, []byte("x")))
	err := b.Insert(0, []byte("y"))
	require.ErrorIs(t, err, api.ErrAlreadyPresent)
}

func TestInsertOutOfRange(t *testing.T) {
	b := buffer.New(4)
	err := b.Insert(4, []byte("z"))
	require.ErrorIs(t, err, api.ErrOutOfRange)
}

func TestReleaseUpToAdvancesWindow(t *testing.T) {
	b := buffer.New(4)
	require.NoError(t, b.Insert(0, []byte("a")))
	require.NoError(t, b.Insert(1, []byte("b")))

	b.ReleaseUpTo(0)
	require.Equal(t, uint32(1), b.HeadSeq())
	require.False(t, b.InUse(0))
	require.True(t, b.InUse(1))

	// idempotent: releasing an already-released seq is a no-op
	b.ReleaseUpTo(0)
	require.Equal(t, uint32(1), b.HeadSeq())

	// now seq 4 becomes insertable since the window advanced
	require.NoError(t, b.Insert(4, []byte("c")))
}

func TestReinitClearsAndResetsWindow(t *testing.T) {
	b := buffer.New(4)
	require.NoError(t, b.Insert(0, []byte("a")))
	b.Reinit(100)
	require.Equal(t, uint32(100), b.HeadSeq())
	require.False(t, b.InUse(0))
	require.NoError(t, b.Insert(100, []byte("fresh")))
}
