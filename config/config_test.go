package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/config"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := config.Default()
	require.Equal(t, 1000*time.Millisecond, c.TokenTimeout)
	require.Equal(t, 200*time.Millisecond, c.TokenRetransmitTime)
	require.Equal(t, uint32(250), c.FailToRecvConst)
	require.Equal(t, uint32(128), c.MissingMcastWindow)
	require.Equal(t, uint32(30), c.RetransmitEntriesMax)
}

func TestStoreMergeDispatchesListeners(t *testing.T) {
	store := config.NewStore(config.Default())

	var seen config.Config
	store.OnReload(func(c config.Config) { seen = c })

	store.Merge(func(c *config.Config) { c.Window = 99 })

	require.Equal(t, uint32(99), store.Snapshot().Window)
	require.Equal(t, uint32(99), seen.Window)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := config.NewStore(config.Default())
	snap := store.Snapshot()
	snap.Window = 12345

	require.NotEqual(t, uint32(12345), store.Snapshot().Window)
}
