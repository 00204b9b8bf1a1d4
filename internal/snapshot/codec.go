// Package snapshot serializes a pipeline's full cross-shard state (every
// risk engine's user profiles, every matching shard's resting books) to a
// single zstd-compressed file, so recovery can start from a recent point
// instead of replaying the entire journal.
//
// The encoding is the same hand-rolled, fixed-width discipline as the
// journal's wire codec rather than a reflective/schema-evolving library:
// a snapshot must decode back into byte-identical state on the very next
// process (possibly a different build), and every map here is walked in
// sorted key order specifically so serialize -> deserialize -> serialize
// round-trips to the same bytes.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/orderbook"
	"github.com/llc-993/matching-core/internal/pipeline"
	"github.com/llc-993/matching-core/internal/risk"
)

const (
	optStopPrice   = 1 << 0
	optVisibleSize = 1 << 1
	optExpireTime  = 1 << 2
)

// Encode serializes state with the hand-rolled binary layout below, then
// compresses the result with zstd.
func Encode(state pipeline.State) ([]byte, error) {
	var buf []byte
	buf = appendU32(buf, uint32(len(state.RiskShards)))
	for _, shard := range state.RiskShards {
		buf = encodeRiskShard(buf, shard)
	}
	buf = appendU32(buf, uint32(len(state.MatchingShards)))
	for _, shard := range state.MatchingShards {
		buf = encodeMatchingShard(buf, shard)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(buf, nil), nil
}

// Decode reverses Encode.
func Decode(data []byte) (pipeline.State, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return pipeline.State{}, fmt.Errorf("snapshot: new zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return pipeline.State{}, fmt.Errorf("snapshot: zstd decode: %w", err)
	}

	r := &reader{buf: raw}
	var state pipeline.State

	numRisk := r.u32()
	state.RiskShards = make([][]risk.UserProfileSnapshot, numRisk)
	for i := range state.RiskShards {
		state.RiskShards[i] = decodeRiskShard(r)
	}

	numMatching := r.u32()
	state.MatchingShards = make([][]pipeline.BookSnapshot, numMatching)
	for i := range state.MatchingShards {
		state.MatchingShards[i] = decodeMatchingShard(r)
	}

	if r.err != nil {
		return pipeline.State{}, fmt.Errorf("snapshot: decode: %w", r.err)
	}
	return state, nil
}

func encodeRiskShard(dst []byte, profiles []risk.UserProfileSnapshot) []byte {
	dst = appendU32(dst, uint32(len(profiles)))
	for _, p := range profiles {
		dst = appendU64(dst, uint64(p.Uid))
		dst = appendBool(dst, p.Suspended)

		currencies := make([]core.Currency, 0, len(p.Accounts))
		for c := range p.Accounts {
			currencies = append(currencies, c)
		}
		sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

		dst = appendU32(dst, uint32(len(currencies)))
		for _, c := range currencies {
			dst = appendI32(dst, int32(c))
			dst = appendI64(dst, p.Accounts[c])
		}

		for _, id := range p.AdjustmentIds {
			dst = appendU64(dst, uint64(id))
		}
		dst = appendU32(dst, uint32(p.AdjustmentPos))
	}
	return dst
}

func decodeRiskShard(r *reader) []risk.UserProfileSnapshot {
	n := r.u32()
	out := make([]risk.UserProfileSnapshot, n)
	for i := range out {
		p := &out[i]
		p.Uid = core.UserId(r.u64())
		p.Suspended = r.bool()

		numAccounts := r.u32()
		p.Accounts = make(map[core.Currency]int64, numAccounts)
		for j := uint32(0); j < numAccounts; j++ {
			currency := core.Currency(r.i32())
			p.Accounts[currency] = r.i64()
		}

		for j := range p.AdjustmentIds {
			p.AdjustmentIds[j] = core.OrderId(r.u64())
		}
		p.AdjustmentPos = int(r.u32())
	}
	return out
}

func encodeMatchingShard(dst []byte, books []pipeline.BookSnapshot) []byte {
	dst = appendU32(dst, uint32(len(books)))
	for _, book := range books {
		dst = appendI32(dst, int32(book.Symbol))
		dst = appendU32(dst, uint32(len(book.Orders)))
		for _, o := range book.Orders {
			dst = encodeOrderSnapshot(dst, o)
		}
	}
	return dst
}

func decodeMatchingShard(r *reader) []pipeline.BookSnapshot {
	n := r.u32()
	out := make([]pipeline.BookSnapshot, n)
	for i := range out {
		out[i].Symbol = core.SymbolId(r.i32())
		numOrders := r.u32()
		out[i].Orders = make([]orderbook.OrderSnapshot, numOrders)
		for j := range out[i].Orders {
			out[i].Orders[j] = decodeOrderSnapshot(r)
		}
	}
	return out
}

func encodeOrderSnapshot(dst []byte, o orderbook.OrderSnapshot) []byte {
	dst = appendU64(dst, uint64(o.OrderId))
	dst = appendU64(dst, uint64(o.Uid))
	dst = appendI64(dst, int64(o.Price))
	dst = appendI64(dst, int64(o.Size))
	dst = appendI64(dst, int64(o.Filled))
	dst = append(dst, byte(o.Action), byte(o.OrderType))
	dst = appendI64(dst, int64(o.ReservePrice))
	dst = appendI64(dst, o.Timestamp)

	var opts byte
	if o.StopPrice != nil {
		opts |= optStopPrice
	}
	if o.VisibleSize != nil {
		opts |= optVisibleSize
	}
	if o.ExpireTime != nil {
		opts |= optExpireTime
	}
	dst = append(dst, opts)
	if o.StopPrice != nil {
		dst = appendI64(dst, int64(*o.StopPrice))
	}
	if o.VisibleSize != nil {
		dst = appendI64(dst, int64(*o.VisibleSize))
	}
	if o.ExpireTime != nil {
		dst = appendI64(dst, *o.ExpireTime)
	}

	dst = appendBool(dst, o.Triggered)
	dst = appendBool(dst, o.IsStop)
	return dst
}

func decodeOrderSnapshot(r *reader) orderbook.OrderSnapshot {
	var o orderbook.OrderSnapshot
	o.OrderId = core.OrderId(r.u64())
	o.Uid = core.UserId(r.u64())
	o.Price = core.Price(r.i64())
	o.Size = core.Size(r.i64())
	o.Filled = core.Size(r.i64())
	o.Action = core.OrderAction(r.u8())
	o.OrderType = core.OrderType(r.u8())
	o.ReservePrice = core.Price(r.i64())
	o.Timestamp = r.i64()

	opts := r.u8()
	if opts&optStopPrice != 0 {
		v := core.Price(r.i64())
		o.StopPrice = &v
	}
	if opts&optVisibleSize != 0 {
		v := core.Size(r.i64())
		o.VisibleSize = &v
	}
	if opts&optExpireTime != 0 {
		v := r.i64()
		o.ExpireTime = &v
	}

	o.Triggered = r.bool()
	o.IsStop = r.bool()
	return o
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

func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

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
		r.err = fmt.Errorf("snapshot: short buffer: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
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

func (r *reader) bool() bool { return r.u8() != 0 }

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
