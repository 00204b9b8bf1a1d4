package net

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/wire"
)

type stubPipeline struct {
	handled []*core.OrderCommand
}

func (s *stubPipeline) HandleCommand(cmd *core.OrderCommand) {
	cmd.ResultCode = core.Success
	s.handled = append(s.handled, cmd)
}

func newTestTomb(t *testing.T) *tomb.Tomb {
	t.Helper()
	tmb, _ := tomb.WithContext(context.Background())
	return tmb
}

func TestServerReplyWritesEncodedCommandToSession(t *testing.T) {
	s := New("127.0.0.1", 0, &stubPipeline{})
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	s.addSession(serverSide)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.OrderId = 7

	done := make(chan error, 1)
	go func() { done <- s.reply(serverSide.RemoteAddr().String(), cmd) }()

	payload, err := wire.ReadLengthPrefixed(clientSide)
	require.NoError(t, err)
	require.NoError(t, <-done)

	decoded, _, err := wire.DecodeCommand(payload)
	require.NoError(t, err)
	assert.Equal(t, core.OrderId(7), decoded.OrderId)
}

func TestServerReplyErrorsWhenSessionUnknown(t *testing.T) {
	s := New("127.0.0.1", 0, &stubPipeline{})
	err := s.reply("nobody", core.NewCommand(core.PlaceOrder))
	assert.ErrorIs(t, err, ErrClientGone)
}

func TestHandleConnectionForwardsDecodedCommandToInbox(t *testing.T) {
	pipeline := &stubPipeline{}
	s := New("127.0.0.1", 0, pipeline)
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.OrderId = 99
	payload := wire.EncodeCommand(nil, cmd)

	go func() {
		_ = wire.WriteLengthPrefixed(clientSide, payload)
	}()

	tmb := newTestTomb(t)
	err := s.handleConnection(tmb, serverSide)
	require.NoError(t, err)

	select {
	case msg := <-s.inbox:
		assert.Equal(t, core.OrderId(99), msg.cmd.OrderId)
	default:
		t.Fatal("expected a message forwarded to the inbox")
	}

	// the connection is handed back to the pool for its next frame
	select {
	case task := <-s.pool.tasks:
		assert.Equal(t, serverSide, task)
	default:
		t.Fatal("expected the connection requeued onto the worker pool")
	}
}

func TestHandleConnectionClosesSessionOnDecodeError(t *testing.T) {
	pipeline := &stubPipeline{}
	s := New("127.0.0.1", 0, pipeline)
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	s.addSession(serverSide)

	go func() {
		_ = wire.WriteLengthPrefixed(clientSide, []byte{0x01})
	}()

	tmb := newTestTomb(t)
	err := s.handleConnection(tmb, serverSide)
	require.NoError(t, err)

	s.sessionsLock.Lock()
	_, ok := s.sessions[serverSide.RemoteAddr().String()]
	s.sessionsLock.Unlock()
	assert.False(t, ok)
}

func TestHandleConnectionRejectsWrongTaskType(t *testing.T) {
	s := New("127.0.0.1", 0, &stubPipeline{})
	tmb := newTestTomb(t)
	err := s.handleConnection(tmb, "not a connection")
	assert.ErrorIs(t, err, ErrImproperConversion)
}
