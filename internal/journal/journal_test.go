package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llc-993/matching-core/internal/core"
)

func TestReadCommandsOnMissingFileReturnsEmpty(t *testing.T) {
	commands, err := ReadCommands(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.bin")
	j, err := Open(path)
	require.NoError(t, err)

	cmd1 := core.NewCommand(core.PlaceOrder)
	cmd1.Uid = 1
	cmd1.OrderId = 1
	cmd1.Symbol = 1
	cmd1.Price = 100
	cmd1.Size = 10

	cmd2 := core.NewCommand(core.CancelOrder)
	cmd2.Uid = 1
	cmd2.OrderId = 1

	require.NoError(t, j.WriteCommand(cmd1))
	require.NoError(t, j.WriteCommand(cmd2))
	require.NoError(t, j.Close())

	replayed, err := ReadCommands(path)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, core.PlaceOrder, replayed[0].Command)
	assert.Equal(t, core.Price(100), replayed[0].Price)
	assert.Equal(t, core.CancelOrder, replayed[1].Command)
}

func TestWriteCommandAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.bin")
	j1, err := Open(path)
	require.NoError(t, err)
	cmd := core.NewCommand(core.PlaceOrder)
	cmd.OrderId = 1
	require.NoError(t, j1.WriteCommand(cmd))
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	cmd2 := core.NewCommand(core.PlaceOrder)
	cmd2.OrderId = 2
	require.NoError(t, j2.WriteCommand(cmd2))
	require.NoError(t, j2.Close())

	replayed, err := ReadCommands(path)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, core.OrderId(1), replayed[0].OrderId)
	assert.Equal(t, core.OrderId(2), replayed[1].OrderId)
}
