// Package journal is the write-ahead log: every command that enters the
// pipeline is appended here, flushed, before it is allowed to affect
// book or balance state, so a crash can only ever lose a command that was
// never acknowledged.
package journal

import (
	"bufio"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/wire"
)

// Journaler appends length-prefixed, wire-encoded commands to a single
// file, flushing after every write. It never buffers across writes the
// way a throughput-oriented log would: the durability guarantee is that a
// WriteCommand call does not return until the bytes are flushed.
type Journaler struct {
	file *os.File
	w    *bufio.Writer
}

func Open(path string) (*Journaler, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journaler{file: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

func (j *Journaler) WriteCommand(cmd *core.OrderCommand) error {
	buf := wire.EncodeCommand(nil, cmd)
	if err := wire.WriteLengthPrefixed(j.w, buf); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journaler) Close() error {
	if err := j.w.Flush(); err != nil {
		log.Error().Err(err).Msg("journal flush failed on close")
	}
	return j.file.Close()
}

// ReadCommands replays every command in the journal at path, in the order
// they were written. A missing file replays as empty: there is simply
// nothing to recover yet.
func ReadCommands(path string) ([]*core.OrderCommand, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var commands []*core.OrderCommand
	for {
		payload, err := wire.ReadLengthPrefixed(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cmd, _, err := wire.DecodeCommand(payload)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}
