package persist_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/totem-srp/persist"
)

func TestLoadMissingFileReturnsZero(t *testing.T) {
	store := persist.Open(filepath.Join(t.TempDir(), "ring-seq"))
	seq, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := persist.Open(filepath.Join(t.TempDir(), "ring-seq"))
	require.NoError(t, store.Save(42))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(42), got)
}

func TestSaveOverwritesPreviousValue(t *testing.T) {
	store := persist.Open(filepath.Join(t.TempDir(), "ring-seq"))
	require.NoError(t, store.Save(1))
	require.NoError(t, store.Save(2))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(2), got)
}
