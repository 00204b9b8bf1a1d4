package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLatestSeqEmptyStore(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.LatestSeq()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	state := sampleState()
	require.NoError(t, store.Save(5, state))

	loaded, err := store.Load(5)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStoreLatestSeqPicksLargestNumericSuffix(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	state := sampleState()
	require.NoError(t, store.Save(1, state))
	require.NoError(t, store.Save(100, state))
	require.NoError(t, store.Save(20, state))

	seq, ok, err := store.LatestSeq()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), seq)
}

func TestStoreLoadLatestReturnsHighestSeqState(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	stateA := sampleState()
	stateB := sampleState()
	stateB.RiskShards[0][0].Accounts[1] = 999

	require.NoError(t, store.Save(1, stateA))
	require.NoError(t, store.Save(2, stateB))

	loaded, seq, ok, err := store.LoadLatest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, int64(999), loaded.RiskShards[0][0].Accounts[1])
}
