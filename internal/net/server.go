// Package net is the TCP command-ingestion server: it decodes wire-framed
// OrderCommands off client connections, serializes them through a single
// pipeline goroutine (the matching and risk engines are not safe for
// concurrent access), and writes the processed command back to the
// connection that sent it.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/wire"
)

const (
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Minute
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientGone         = errors.New("client connection no longer tracked")
)

// Pipeline is the command-handling surface the server drives. It matches
// pipeline.Pipeline's HandleCommand signature without importing that
// package, so the server can be unit tested against a stub.
type Pipeline interface {
	HandleCommand(cmd *core.OrderCommand)
}

type clientSession struct {
	conn net.Conn
}

type clientMessage struct {
	clientAddress string
	cmd           *core.OrderCommand
}

type Server struct {
	address  string
	port     int
	pipeline Pipeline
	pool     workerPool
	cancel   context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]clientSession

	inbox chan clientMessage
}

func New(address string, port int, pipeline Pipeline) *Server {
	return &Server{
		address:  address,
		port:     port,
		pipeline: pipeline,
		pool:     newWorkerPool(defaultNWorkers),
		sessions: make(map[string]clientSession),
		inbox:    make(chan clientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("command server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start command listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close command listener")
		}
	}()

	t.Go(func() error {
		s.pool.setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.dispatchLoop(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("command server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Debug().Str("address", conn.RemoteAddr().String()).Msg("new client connected")
			s.addSession(conn)
			s.pool.tasks <- conn
		}
	}
}

// dispatchLoop runs every decoded command through the pipeline one at a
// time, on its own goroutine: this is the single point of serialization
// that keeps the matching and risk engines single-threaded.
func (s *Server) dispatchLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbox:
			s.pipeline.HandleCommand(msg.cmd)
			if err := s.reply(msg.clientAddress, msg.cmd); err != nil {
				log.Error().Err(err).Str("clientAddress", msg.clientAddress).Msg("error replying to client")
			}
		}
	}
}

func (s *Server) reply(clientAddress string, cmd *core.OrderCommand) error {
	s.sessionsLock.Lock()
	session, ok := s.sessions[clientAddress]
	s.sessionsLock.Unlock()
	if !ok {
		return ErrClientGone
	}
	payload := wire.EncodeCommand(nil, cmd)
	return wire.WriteLengthPrefixed(session.conn, payload)
}

// handleConnection reads exactly one length-prefixed command off conn,
// forwards it for processing, and returns the connection to the pool so
// the next frame on the same socket gets its own worker turn.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting read deadline")
		s.closeSession(conn)
		return nil
	}

	payload, err := wire.ReadLengthPrefixed(conn)
	if err != nil {
		log.Debug().Err(err).Str("address", conn.RemoteAddr().String()).Msg("client connection closed")
		s.closeSession(conn)
		return nil
	}

	cmd, _, err := wire.DecodeCommand(payload)
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error decoding command")
		s.closeSession(conn)
		return nil
	}

	s.inbox <- clientMessage{clientAddress: conn.RemoteAddr().String(), cmd: cmd}
	s.pool.tasks <- conn
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) closeSession(conn net.Conn) {
	address := conn.RemoteAddr().String()
	s.sessionsLock.Lock()
	delete(s.sessions, address)
	s.sessionsLock.Unlock()
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("error closing client connection")
	}
}
