// Package pipeline wires grouping, the matching shards and the risk
// shards into the single ordered flow every command passes through:
// grouping assigns an events_group, risk-pre reserves funds, matching
// runs the command against its symbol's book, risk-post settles whatever
// matcher events came out of it, and the result is handed to the result
// consumer, if one is set.
package pipeline

import (
	"sort"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/invariant"
	"github.com/llc-993/matching-core/internal/orderbook"
)

// MatchingRouter owns every symbol whose id selects this shard
// (symbol_id & shard_mask == shard_id) and dispatches commands against
// that symbol's book. Symbols outside the shard are left untouched,
// exactly like risk.Engine leaves uids outside its shard untouched.
type MatchingRouter struct {
	shardId   int
	shardMask uint64

	books map[core.SymbolId]orderbook.Book
}

func NewMatchingRouter(shardId, numShards int) *MatchingRouter {
	invariant.Check(numShards > 0 && numShards&(numShards-1) == 0, "num_shards %d is not a power of two", numShards)
	return &MatchingRouter{
		shardId:   shardId,
		shardMask: uint64(numShards - 1),
		books:     make(map[core.SymbolId]orderbook.Book),
	}
}

func (r *MatchingRouter) ownsSymbol(symbol core.SymbolId) bool {
	return r.shardMask == 0 || (uint64(symbol)&r.shardMask) == uint64(r.shardId)
}

func (r *MatchingRouter) AddSymbol(spec core.SymbolSpecification) {
	if !r.ownsSymbol(spec.SymbolId) {
		return
	}
	r.books[spec.SymbolId] = orderbook.NewBtreeBook(spec)
}

// ProcessOrder dispatches cmd to its symbol's book if this shard owns that
// symbol, leaving cmd untouched otherwise so every other shard's identical
// call is a no-op. A command that already carries a terminal result code
// (a risk-pre rejection, or a user command risk-pre completed) is left
// untouched as well.
func (r *MatchingRouter) ProcessOrder(cmd *core.OrderCommand) {
	if cmd.ResultCode.IsTerminal() || !r.ownsSymbol(cmd.Symbol) {
		return
	}
	book, ok := r.books[cmd.Symbol]
	if !ok {
		cmd.ResultCode = core.MatchingInvalidOrderBookId
		return
	}

	switch cmd.Command {
	case core.PlaceOrder:
		cmd.ResultCode = book.Place(cmd)
	case core.MoveOrder:
		cmd.ResultCode = book.Move(cmd)
	case core.CancelOrder:
		cmd.ResultCode = book.Cancel(cmd)
	case core.ReduceOrder:
		cmd.ResultCode = book.Reduce(cmd)
	case core.OrderBookRequest:
		cmd.ResultCode = core.Success
	default:
		cmd.ResultCode = core.MatchingUnsupportedCommand
	}
}

// Depth returns the L2 snapshot for symbol if this shard owns it.
func (r *MatchingRouter) Depth(symbol core.SymbolId, levels int) (orderbook.L2Depth, bool) {
	book, ok := r.books[symbol]
	if !ok {
		return orderbook.L2Depth{}, false
	}
	return book.L2Depth(levels), true
}

// DrainTriggeredStops collects every synthetic command every book in this
// shard produced by a stop-order trigger since the last call.
func (r *MatchingRouter) DrainTriggeredStops() []*core.OrderCommand {
	var out []*core.OrderCommand
	for _, book := range r.books {
		out = append(out, book.PopTriggeredStops()...)
	}
	return out
}

// BookSnapshot is one symbol's resting book state, keyed so a snapshot of
// every shard can be merged back into a single deterministic listing.
type BookSnapshot struct {
	Symbol core.SymbolId
	Orders []orderbook.OrderSnapshot
}

// Snapshot returns every owned symbol's book state, sorted by symbol id.
func (r *MatchingRouter) Snapshot() []BookSnapshot {
	symbols := make([]core.SymbolId, 0, len(r.books))
	for symbol := range r.books {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	out := make([]BookSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, BookSnapshot{Symbol: symbol, Orders: r.books[symbol].Snapshot()})
	}
	return out
}

// Restore replays every symbol's resting orders back into its book. The
// book must already exist (AddSymbol runs before Restore, from the same
// symbol specifications used when the snapshot was taken).
func (r *MatchingRouter) Restore(snapshots []BookSnapshot) {
	for _, s := range snapshots {
		if book, ok := r.books[s.Symbol]; ok {
			book.Restore(s.Orders)
		}
	}
}
