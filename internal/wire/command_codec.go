// Package wire is a deliberately hand-rolled binary codec (the snapshot
// package has its own, built the same way): a fixed field order and
// explicit little-endian widths for OrderCommand, shared by the journal
// and the command-ingestion server.
// Both sides of a wire format like this must agree on byte-for-byte
// layout forever (a journal written by one build must replay on the
// next), which is exactly the guarantee a reflective or schema-evolving
// encoder does not give; see DESIGN.md for why this is built on
// encoding/binary instead of a marshaling library.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/llc-993/matching-core/internal/core"
)

const (
	optStopPrice   = 1 << 0
	optVisibleSize = 1 << 1
	optExpireTime  = 1 << 2
)

// EncodeCommand appends cmd's wire representation to dst and returns the
// extended slice.
func EncodeCommand(dst []byte, cmd *core.OrderCommand) []byte {
	dst = append(dst, byte(cmd.Command), byte(cmd.ResultCode))
	dst = appendU64(dst, uint64(cmd.Uid))
	dst = appendU64(dst, uint64(cmd.OrderId))
	dst = appendI32(dst, int32(cmd.Symbol))
	dst = appendI64(dst, int64(cmd.Price))
	dst = appendI64(dst, int64(cmd.ReservePrice))
	dst = appendI64(dst, int64(cmd.Size))
	dst = append(dst, byte(cmd.Action), byte(cmd.OrderType))
	dst = appendI64(dst, cmd.Timestamp)
	dst = appendU64(dst, cmd.EventsGroup)
	dst = appendI32(dst, cmd.ServiceFlags)

	var opts byte
	if cmd.StopPrice != nil {
		opts |= optStopPrice
	}
	if cmd.VisibleSize != nil {
		opts |= optVisibleSize
	}
	if cmd.ExpireTime != nil {
		opts |= optExpireTime
	}
	dst = append(dst, opts)
	if cmd.StopPrice != nil {
		dst = appendI64(dst, int64(*cmd.StopPrice))
	}
	if cmd.VisibleSize != nil {
		dst = appendI64(dst, int64(*cmd.VisibleSize))
	}
	if cmd.ExpireTime != nil {
		dst = appendI64(dst, *cmd.ExpireTime)
	}

	dst = appendU32(dst, uint32(len(cmd.MatcherEvents)))
	for _, ev := range cmd.MatcherEvents {
		dst = append(dst, byte(ev.EventType))
		dst = appendI64(dst, int64(ev.Size))
		dst = appendI64(dst, int64(ev.Price))
		dst = appendU64(dst, uint64(ev.MatchedOrderId))
		dst = appendU64(dst, uint64(ev.MatchedOrderUid))
		dst = appendI64(dst, int64(ev.BidderHoldPrice))
	}
	return dst
}

// DecodeCommand reads one command back out of src, returning the number
// of bytes it consumed.
func DecodeCommand(src []byte) (*core.OrderCommand, int, error) {
	r := &reader{buf: src}

	cmd := &core.OrderCommand{}
	cmd.Command = core.CommandType(r.u8())
	cmd.ResultCode = core.ResultCode(r.u8())
	cmd.Uid = core.UserId(r.u64())
	cmd.OrderId = core.OrderId(r.u64())
	cmd.Symbol = core.SymbolId(r.i32())
	cmd.Price = core.Price(r.i64())
	cmd.ReservePrice = core.Price(r.i64())
	cmd.Size = core.Size(r.i64())
	cmd.Action = core.OrderAction(r.u8())
	cmd.OrderType = core.OrderType(r.u8())
	cmd.Timestamp = r.i64()
	cmd.EventsGroup = r.u64()
	cmd.ServiceFlags = r.i32()

	opts := r.u8()
	if opts&optStopPrice != 0 {
		v := core.Price(r.i64())
		cmd.StopPrice = &v
	}
	if opts&optVisibleSize != 0 {
		v := core.Size(r.i64())
		cmd.VisibleSize = &v
	}
	if opts&optExpireTime != 0 {
		v := r.i64()
		cmd.ExpireTime = &v
	}

	count := r.u32()
	if count > 0 {
		cmd.MatcherEvents = make([]core.MatcherEvent, count)
		for i := range cmd.MatcherEvents {
			cmd.MatcherEvents[i] = core.MatcherEvent{
				EventType:       core.EventType(r.u8()),
				Size:            core.Size(r.i64()),
				Price:           core.Price(r.i64()),
				MatchedOrderId:  core.OrderId(r.u64()),
				MatchedOrderUid: core.UserId(r.u64()),
				BidderHoldPrice: core.Price(r.i64()),
			}
		}
	}

	if r.err != nil {
		return nil, 0, r.err
	}
	return cmd, r.pos, nil
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendI64(dst []byte, v int64) []byte { return appendU64(dst, uint64(v)) }

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendI32(dst []byte, v int32) []byte { return appendU32(dst, uint32(v)) }

// reader walks a byte slice left to right, latching the first
// out-of-bounds read into err so a long chain of field reads doesn't need
// a check after every one.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("wire: short command buffer: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.need(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) u64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 { return int64(r.u64()) }

// ReadLengthPrefixed reads one u32-length-prefixed frame from r, the
// on-disk/on-wire framing both the journal and the command server use.
func ReadLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteLengthPrefixed writes payload to w preceded by its u32 length.
func WriteLengthPrefixed(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
