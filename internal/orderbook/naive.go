package orderbook

import (
	"sort"

	"github.com/llc-993/matching-core/internal/core"
)

// NaiveBook is a deliberately simple, linear-scan implementation of Book:
// no price-level tree, no best-price cache, just a flat slice per side
// re-sorted on demand. It exists purely as a test oracle: book_test.go runs
// the same cases against it and BtreeBook; it is never used on the hot path.
type NaiveBook struct {
	spec core.SymbolSpecification

	bidOrders []*restingOrder
	askOrders []*restingOrder
	index     map[core.OrderId]*restingOrder
	stops     stopPool

	triggeredQueue []*core.OrderCommand
}

func NewNaiveBook(spec core.SymbolSpecification) *NaiveBook {
	return &NaiveBook{spec: spec, index: make(map[core.OrderId]*restingOrder)}
}

func (b *NaiveBook) Spec() core.SymbolSpecification { return b.spec }

func (b *NaiveBook) sideSlice(action core.OrderAction) *[]*restingOrder {
	if action == core.Bid {
		return &b.bidOrders
	}
	return &b.askOrders
}

// sortSide re-establishes price-time priority: best price first, ties
// broken by arrival order (stable sort preserves ties since orders are
// always appended at the back on arrival).
func (b *NaiveBook) sortSide(action core.OrderAction) {
	orders := b.sideSlice(action)
	if action == core.Bid {
		sort.SliceStable(*orders, func(i, j int) bool { return (*orders)[i].Price > (*orders)[j].Price })
	} else {
		sort.SliceStable(*orders, func(i, j int) bool { return (*orders)[i].Price < (*orders)[j].Price })
	}
}

func (b *NaiveBook) Place(cmd *core.OrderCommand) core.ResultCode {
	if cmd.OrderType == core.StopLimit || cmd.OrderType == core.StopMarket {
		if cmd.Size <= 0 || cmd.StopPrice == nil {
			cmd.ResultCode = core.MatchingInvalidOrderSize
			return cmd.ResultCode
		}
		o := newRestingOrder(cmd, 0)
		b.index[o.OrderId] = o
		b.stops.add(o)
		cmd.ResultCode = core.Success
		return cmd.ResultCode
	}
	if cmd.Size <= 0 {
		cmd.ResultCode = core.MatchingInvalidOrderSize
		return cmd.ResultCode
	}

	if cmd.OrderType.IsBudget() {
		return b.placeBudget(cmd)
	}
	return b.placeLimit(cmd)
}

func (b *NaiveBook) placeLimit(cmd *core.OrderCommand) core.ResultCode {
	accept := crossAccept(cmd.Action, cmd.Price)

	// A reused order id never rests a second time: match it against the
	// book like any other taker and reject whatever it leaves unfilled,
	// instead of silently orphaning the order it would otherwise overwrite
	// in b.index.
	if _, exists := b.index[cmd.OrderId]; exists {
		matched, events := b.sweep(cmd.Action, accept, cmd.Size, cmd.ReservePrice, cmd.Timestamp)
		cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
		if remaining := cmd.Size - matched; remaining > 0 {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, cmd.Price, cmd.ReservePrice))
		}
		cmd.ResultCode = core.Success
		b.triggerStops(events)
		return cmd.ResultCode
	}

	if cmd.OrderType == core.PostOnly {
		opposite := *b.sideSlice(cmd.Action.Opposite())
		if len(opposite) > 0 && accept(opposite[0].Price) {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(cmd.Size, cmd.Price, cmd.ReservePrice))
			cmd.ResultCode = core.Success
			return cmd.ResultCode
		}
		b.rest(cmd, 0)
		cmd.ResultCode = core.Success
		return cmd.ResultCode
	}

	if cmd.OrderType == core.Fok {
		var avail core.Size
		for _, o := range *b.sideSlice(cmd.Action.Opposite()) {
			if !accept(o.Price) {
				continue
			}
			avail += o.Remaining()
		}
		if avail < cmd.Size {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(cmd.Size, cmd.Price, cmd.ReservePrice))
			cmd.ResultCode = core.Success
			return cmd.ResultCode
		}
	}

	matched, events := b.sweep(cmd.Action, accept, cmd.Size, cmd.ReservePrice, cmd.Timestamp)
	cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
	remaining := cmd.Size - matched

	if remaining > 0 {
		if cmd.OrderType.NeverRests() {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, cmd.Price, cmd.ReservePrice))
		} else {
			b.rest(cmd, matched)
		}
	}

	cmd.ResultCode = core.Success
	b.triggerStops(events)
	return cmd.ResultCode
}

func (b *NaiveBook) placeBudget(cmd *core.OrderCommand) core.ResultCode {
	if cmd.Price <= 0 {
		cmd.ResultCode = core.MatchingInvalidOrderSize
		return cmd.ResultCode
	}
	if cmd.OrderType == core.FokBudget {
		var spent core.Price
		var filled core.Size
		for _, o := range *b.sideSlice(cmd.Action.Opposite()) {
			if filled >= cmd.Size {
				break
			}
			remainingBudget := cmd.Price - spent
			if remainingBudget <= 0 {
				break
			}
			affordable := core.Size(remainingBudget / o.Price)
			if affordable <= 0 {
				break
			}
			take := o.Remaining()
			if left := cmd.Size - filled; take > left {
				take = left
			}
			if take > affordable {
				take = affordable
			}
			filled += take
			spent += core.Price(take) * o.Price
		}
		if filled < cmd.Size {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(cmd.Size, 0, cmd.Price))
			cmd.ResultCode = core.Success
			return cmd.ResultCode
		}
	}

	// A budget order's hold was reserved against cmd.Price (computeHold
	// skips the reserve-price basis for IsBudget orders), so the trade
	// events it produces must carry cmd.Price as the bidder's hold price
	// too, or settlement refunds/credits against a basis risk never held.
	matched, events := b.sweepBudget(cmd.Action, cmd.Price, cmd.Size, cmd.Price, cmd.Timestamp)
	cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
	remaining := cmd.Size - matched
	if remaining > 0 {
		cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, 0, cmd.Price))
	}
	cmd.ResultCode = core.Success
	b.triggerStops(events)
	return cmd.ResultCode
}

// sweep matches against the opposite side in price-time priority, scanning
// the whole (already-sorted) slice from the front.
func (b *NaiveBook) sweep(action core.OrderAction, accept func(core.Price) bool, need core.Size, reservePrice core.Price, now int64) (core.Size, []core.MatcherEvent) {
	opposite := b.sideSlice(action.Opposite())
	var matched core.Size
	var events []core.MatcherEvent
	var keep []*restingOrder

	for i, o := range *opposite {
		if matched >= need || !accept(o.Price) {
			keep = append(keep, (*opposite)[i:]...)
			break
		}
		if o.ExpireTime != nil && now > *o.ExpireTime {
			delete(b.index, o.OrderId)
			continue
		}
		q := o.Remaining()
		if left := need - matched; q > left {
			q = left
		}
		o.Filled += q
		matched += q

		bidderHoldPrice := reservePrice
		if action == core.Ask {
			bidderHoldPrice = o.ReservePrice
		}
		events = append(events, core.NewTradeEvent(q, o.Price, o.OrderId, o.Uid, bidderHoldPrice))

		if o.Remaining() > 0 {
			keep = append(keep, o)
		} else {
			delete(b.index, o.OrderId)
		}
	}

	*opposite = keep
	return matched, events
}

func (b *NaiveBook) sweepBudget(action core.OrderAction, budget core.Price, need core.Size, reservePrice core.Price, now int64) (core.Size, []core.MatcherEvent) {
	opposite := b.sideSlice(action.Opposite())
	var matched core.Size
	var spent core.Price
	var events []core.MatcherEvent
	var keep []*restingOrder

	for i, o := range *opposite {
		if matched >= need {
			keep = append(keep, (*opposite)[i:]...)
			break
		}
		if o.ExpireTime != nil && now > *o.ExpireTime {
			delete(b.index, o.OrderId)
			continue
		}
		remainingBudget := budget - spent
		if remainingBudget <= 0 {
			keep = append(keep, (*opposite)[i:]...)
			break
		}
		affordable := core.Size(remainingBudget / o.Price)
		if affordable <= 0 {
			keep = append(keep, (*opposite)[i:]...)
			break
		}
		q := o.Remaining()
		if left := need - matched; q > left {
			q = left
		}
		if q > affordable {
			q = affordable
		}
		o.Filled += q
		matched += q
		spent += core.Price(q) * o.Price

		bidderHoldPrice := reservePrice
		if action == core.Ask {
			bidderHoldPrice = o.ReservePrice
		}
		events = append(events, core.NewTradeEvent(q, o.Price, o.OrderId, o.Uid, bidderHoldPrice))

		if o.Remaining() > 0 {
			keep = append(keep, o)
		} else {
			delete(b.index, o.OrderId)
		}
	}

	*opposite = keep
	return matched, events
}

func (b *NaiveBook) rest(cmd *core.OrderCommand, filled core.Size) {
	o := newRestingOrder(cmd, filled)
	b.index[o.OrderId] = o
	slice := b.sideSlice(o.Action)
	*slice = append(*slice, o)
	b.sortSide(o.Action)
}

func (b *NaiveBook) triggerStops(events []core.MatcherEvent) {
	for _, e := range events {
		if e.EventType != core.Trade {
			continue
		}
		for _, o := range b.stops.checkTriggers(e.Price) {
			b.reissueStop(o)
		}
	}
}

func (b *NaiveBook) reissueStop(o *restingOrder) {
	synth := core.NewCommand(core.PlaceOrder)
	synth.Uid = o.Uid
	synth.OrderId = o.OrderId
	synth.Symbol = b.spec.SymbolId
	synth.Price = o.Price
	synth.ReservePrice = o.ReservePrice
	synth.Size = o.Remaining()
	synth.Action = o.Action
	synth.OrderType = core.Gtc
	synth.Timestamp = o.Timestamp
	synth.ExpireTime = o.ExpireTime

	delete(b.index, o.OrderId)
	b.placeLimit(synth)
	b.triggeredQueue = append(b.triggeredQueue, synth)
}

func (b *NaiveBook) PopTriggeredStops() []*core.OrderCommand {
	out := b.triggeredQueue
	b.triggeredQueue = nil
	return out
}

func (b *NaiveBook) findIndex(action core.OrderAction, id core.OrderId) int {
	for i, o := range *b.sideSlice(action) {
		if o.OrderId == id {
			return i
		}
	}
	return -1
}

func (b *NaiveBook) Cancel(cmd *core.OrderCommand) core.ResultCode {
	o, ok := b.index[cmd.OrderId]
	if !ok || o.Uid != cmd.Uid {
		cmd.ResultCode = core.MatchingUnknownOrderId
		return cmd.ResultCode
	}
	remaining := o.Remaining()
	b.removeResting(o)
	cmd.Action = o.Action
	cmd.Price = o.Price
	cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, o.Price, o.ReservePrice))
	cmd.ResultCode = core.Success
	return cmd.ResultCode
}

func (b *NaiveBook) removeResting(o *restingOrder) {
	delete(b.index, o.OrderId)
	if o.StopPrice != nil && !o.Triggered {
		b.stops.removeById(o.OrderId)
		return
	}
	if i := b.findIndex(o.Action, o.OrderId); i >= 0 {
		slice := b.sideSlice(o.Action)
		*slice = append((*slice)[:i], (*slice)[i+1:]...)
	}
}

func (b *NaiveBook) Move(cmd *core.OrderCommand) core.ResultCode {
	o, ok := b.index[cmd.OrderId]
	if !ok || o.Uid != cmd.Uid {
		cmd.ResultCode = core.MatchingUnknownOrderId
		return cmd.ResultCode
	}
	if o.StopPrice != nil && !o.Triggered {
		cmd.ResultCode = core.MatchingUnsupportedCommand
		return cmd.ResultCode
	}
	if o.Action == core.Bid && cmd.Price > o.ReservePrice {
		cmd.ResultCode = core.MatchingMoveFailedPriceOverRiskLimit
		return cmd.ResultCode
	}

	b.removeResting(o)
	o.Price = cmd.Price
	cmd.Action = o.Action

	accept := crossAccept(o.Action, o.Price)
	need := o.Remaining()
	matched, events := b.sweep(o.Action, accept, need, o.ReservePrice, cmd.Timestamp)
	cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
	o.Filled += matched

	if o.Remaining() > 0 {
		b.index[o.OrderId] = o
		slice := b.sideSlice(o.Action)
		*slice = append(*slice, o)
		b.sortSide(o.Action)
	}

	cmd.ResultCode = core.Success
	b.triggerStops(events)
	return cmd.ResultCode
}

func (b *NaiveBook) Reduce(cmd *core.OrderCommand) core.ResultCode {
	o, ok := b.index[cmd.OrderId]
	if !ok || o.Uid != cmd.Uid {
		cmd.ResultCode = core.MatchingUnknownOrderId
		return cmd.ResultCode
	}
	remaining := o.Remaining()
	delta := cmd.Size
	if delta <= 0 || delta >= remaining {
		cmd.ResultCode = core.MatchingReduceFailedWrongSize
		return cmd.ResultCode
	}
	o.Size -= delta
	if o.VisibleSize != nil && *o.VisibleSize > o.Remaining() {
		*o.VisibleSize = o.Remaining()
	}

	cmd.Action = o.Action
	cmd.Price = o.Price
	cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewReduceEvent(delta, o.Price, o.ReservePrice))
	cmd.ResultCode = core.Success
	return cmd.ResultCode
}

func (b *NaiveBook) L2Depth(levels int) L2Depth {
	var out L2Depth
	out.Bids = aggregateLevels(b.bidOrders, levels)
	out.Asks = aggregateLevels(b.askOrders, levels)
	return out
}

// aggregateLevels groups an already price-sorted slice into per-price
// summaries, in price order, up to levels entries.
func aggregateLevels(orders []*restingOrder, levels int) []PriceLevel {
	var out []PriceLevel
	for _, o := range orders {
		remaining := o.Remaining()
		visible := o.visibleOf(remaining)
		if len(out) > 0 && out[len(out)-1].Price == o.Price {
			out[len(out)-1].TotalVolume += remaining
			out[len(out)-1].VisibleVolume += visible
			out[len(out)-1].OrderCount++
			continue
		}
		if len(out) >= levels {
			break
		}
		out = append(out, PriceLevel{Price: o.Price, TotalVolume: remaining, VisibleVolume: visible, OrderCount: 1})
	}
	return out
}

func (b *NaiveBook) TotalBidVolume() core.Size { return totalVolume(b.bidOrders) }
func (b *NaiveBook) TotalAskVolume() core.Size { return totalVolume(b.askOrders) }

func totalVolume(orders []*restingOrder) core.Size {
	var total core.Size
	for _, o := range orders {
		total += o.Remaining()
	}
	return total
}

func (b *NaiveBook) BestBid() (core.Price, bool) {
	if len(b.bidOrders) == 0 {
		return 0, false
	}
	return b.bidOrders[0].Price, true
}

func (b *NaiveBook) BestAsk() (core.Price, bool) {
	if len(b.askOrders) == 0 {
		return 0, false
	}
	return b.askOrders[0].Price, true
}
