// Package orderbook holds one symbol's resting liquidity and implements
// the matching algorithm that runs against it: ascending/descending
// price-level trees for bid/ask, an order-id index for O(1) cancel/move/
// reduce, iceberg bookkeeping inside each level, and a pool of untriggered
// stop orders checked lazily after every trade.
package orderbook

import (
	"github.com/llc-993/matching-core/internal/core"
)

// PriceLevel is a read-only view of one side of the book at one price,
// returned by L2Depth.
type PriceLevel struct {
	Price         core.Price
	TotalVolume   core.Size
	VisibleVolume core.Size
	OrderCount    int
}

// L2Depth is a snapshot of the visible book, best price first on each side.
type L2Depth struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// OrderSnapshot is the full on-the-wire state of one resting or pending
// stop order, used to serialize and restore a book without replaying
// every command that built it.
type OrderSnapshot struct {
	OrderId      core.OrderId
	Uid          core.UserId
	Price        core.Price
	Size         core.Size
	Filled       core.Size
	Action       core.OrderAction
	OrderType    core.OrderType
	ReservePrice core.Price
	Timestamp    int64
	StopPrice    *core.Price
	VisibleSize  *core.Size
	ExpireTime   *int64
	Triggered    bool
	IsStop       bool // still resting in the untriggered stop pool
}

// Book is the matching surface one symbol's pipeline shard drives. Every
// method mutates cmd.MatcherEvents and returns the result code that stage
// should leave on the command; callers never need to inspect book internals
// directly.
type Book interface {
	Spec() core.SymbolSpecification
	Place(cmd *core.OrderCommand) core.ResultCode
	Cancel(cmd *core.OrderCommand) core.ResultCode
	Move(cmd *core.OrderCommand) core.ResultCode
	Reduce(cmd *core.OrderCommand) core.ResultCode
	L2Depth(levels int) L2Depth
	TotalBidVolume() core.Size
	TotalAskVolume() core.Size
	BestBid() (core.Price, bool)
	BestAsk() (core.Price, bool)
	PopTriggeredStops() []*core.OrderCommand

	// Snapshot and Restore let a book's exact resting state cross a
	// snapshot boundary without replaying the journal: Snapshot walks
	// every resting and pending-stop order in deterministic (price, then
	// arrival) order; Restore rebuilds that same state on an empty book.
	Snapshot() []OrderSnapshot
	Restore(orders []OrderSnapshot)
}
