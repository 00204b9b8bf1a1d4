package orderbook

import "github.com/llc-993/matching-core/internal/core"

// restingOrder is an order that has been admitted into the book: either
// sitting in a price bucket (Gtc/Ioc-partial/PostOnly/Iceberg/Day/Gtd) or
// waiting untriggered in the stop-order pool (StopLimit/StopMarket).
type restingOrder struct {
	OrderId      core.OrderId
	Uid          core.UserId
	Price        core.Price
	Size         core.Size
	Filled       core.Size
	Action       core.OrderAction
	OrderType    core.OrderType
	ReservePrice core.Price
	Timestamp    int64

	StopPrice   *core.Price
	VisibleSize *core.Size
	ExpireTime  *int64
	Triggered   bool
}

// Remaining is size - filled; it is > 0 for every order actually resting
// in a bucket, and is whatever was left unfilled for a stop order that has
// not yet triggered.
func (o *restingOrder) Remaining() core.Size {
	return o.Size - o.Filled
}

// visibleOf returns min(visibleSize, remaining) for icebergs, or remaining
// itself for a plain order (SPEC_FULL.md / spec.md §4.1 iceberg bookkeeping).
func (o *restingOrder) visibleOf(remaining core.Size) core.Size {
	if o.VisibleSize == nil {
		return remaining
	}
	if *o.VisibleSize < remaining {
		return *o.VisibleSize
	}
	return remaining
}

func newRestingOrder(cmd *core.OrderCommand, filled core.Size) *restingOrder {
	return &restingOrder{
		OrderId:      cmd.OrderId,
		Uid:          cmd.Uid,
		Price:        cmd.Price,
		Size:         cmd.Size,
		Filled:       filled,
		Action:       cmd.Action,
		OrderType:    cmd.OrderType,
		ReservePrice: cmd.ReservePrice,
		Timestamp:    cmd.Timestamp,
		StopPrice:    cmd.StopPrice,
		VisibleSize:  cmd.VisibleSize,
		ExpireTime:   cmd.ExpireTime,
	}
}
