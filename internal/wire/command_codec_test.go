package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llc-993/matching-core/internal/core"
)

func TestEncodeDecodeRoundTripMinimalCommand(t *testing.T) {
	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = 7
	cmd.OrderId = 42
	cmd.Symbol = 3
	cmd.Price = 100
	cmd.ReservePrice = 100
	cmd.Size = 10
	cmd.Action = core.Bid
	cmd.OrderType = core.Gtc
	cmd.Timestamp = 123456789
	cmd.EventsGroup = 5
	cmd.ServiceFlags = -1

	encoded := EncodeCommand(nil, cmd)
	decoded, n, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, cmd.Command, decoded.Command)
	assert.Equal(t, cmd.Uid, decoded.Uid)
	assert.Equal(t, cmd.OrderId, decoded.OrderId)
	assert.Equal(t, cmd.Symbol, decoded.Symbol)
	assert.Equal(t, cmd.Price, decoded.Price)
	assert.Equal(t, cmd.Size, decoded.Size)
	assert.Equal(t, cmd.Action, decoded.Action)
	assert.Equal(t, cmd.Timestamp, decoded.Timestamp)
	assert.Equal(t, cmd.EventsGroup, decoded.EventsGroup)
	assert.Equal(t, cmd.ServiceFlags, decoded.ServiceFlags)
	assert.Nil(t, decoded.StopPrice)
	assert.Nil(t, decoded.VisibleSize)
	assert.Nil(t, decoded.ExpireTime)
	assert.Empty(t, decoded.MatcherEvents)
}

func TestEncodeDecodeRoundTripOptionalFieldsAndEvents(t *testing.T) {
	stopPrice := core.Price(95)
	visibleSize := core.Size(2)
	expireTime := int64(999)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.OrderType = core.Iceberg
	cmd.StopPrice = &stopPrice
	cmd.VisibleSize = &visibleSize
	cmd.ExpireTime = &expireTime
	cmd.MatcherEvents = []core.MatcherEvent{
		core.NewTradeEvent(5, 100, 1, 2, 105),
		core.NewRejectEvent(3, 100, 100),
	}

	encoded := EncodeCommand(nil, cmd)
	decoded, _, err := DecodeCommand(encoded)
	require.NoError(t, err)

	require.NotNil(t, decoded.StopPrice)
	assert.Equal(t, stopPrice, *decoded.StopPrice)
	require.NotNil(t, decoded.VisibleSize)
	assert.Equal(t, visibleSize, *decoded.VisibleSize)
	require.NotNil(t, decoded.ExpireTime)
	assert.Equal(t, expireTime, *decoded.ExpireTime)

	require.Len(t, decoded.MatcherEvents, 2)
	assert.Equal(t, core.Trade, decoded.MatcherEvents[0].EventType)
	assert.Equal(t, core.Size(5), decoded.MatcherEvents[0].Size)
	assert.Equal(t, core.Reject, decoded.MatcherEvents[1].EventType)
}

func TestDecodeCommandErrorsOnShortBuffer(t *testing.T) {
	cmd := core.NewCommand(core.PlaceOrder)
	encoded := EncodeCommand(nil, cmd)

	_, _, err := DecodeCommand(encoded[:len(encoded)-1])
	assert.Error(t, err)
}

func TestEncodeCommandAppendsToExistingSlice(t *testing.T) {
	prefix := []byte{0xAB, 0xCD}
	cmd := core.NewCommand(core.PlaceOrder)
	out := EncodeCommand(prefix, cmd)
	assert.Equal(t, []byte{0xAB, 0xCD}, out[:2])

	decoded, n, err := DecodeCommand(out[2:])
	require.NoError(t, err)
	assert.Equal(t, core.PlaceOrder, decoded.Command)
	assert.Equal(t, len(out)-2, n)
}

func TestLengthPrefixedFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloadA := []byte("hello")
	payloadB := []byte{}

	require.NoError(t, WriteLengthPrefixed(&buf, payloadA))
	require.NoError(t, WriteLengthPrefixed(&buf, payloadB))

	got1, err := ReadLengthPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, payloadA, got1)

	got2, err := ReadLengthPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, payloadB, got2)
}
