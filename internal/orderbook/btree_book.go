package orderbook

import (
	"github.com/tidwall/btree"

	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/invariant"
)

type levels = btree.BTreeG[*priceBucket]

// BtreeBook is the production Book: tidwall/btree price-level trees on
// both sides, an order-id index for O(1) cancel/move/reduce, and a pool of
// stop orders invisible to matching until the last trade crosses them.
type BtreeBook struct {
	spec core.SymbolSpecification

	bids *levels // descending: best bid first
	asks *levels // ascending: best ask first

	index map[core.OrderId]*restingOrder
	stops stopPool

	bestBidCache *core.Price
	bestAskCache *core.Price

	triggeredQueue []*core.OrderCommand
}

func NewBtreeBook(spec core.SymbolSpecification) *BtreeBook {
	bids := btree.NewBTreeG(func(a, b *priceBucket) bool { return a.Price > b.Price })
	asks := btree.NewBTreeG(func(a, b *priceBucket) bool { return a.Price < b.Price })
	return &BtreeBook{
		spec:  spec,
		bids:  bids,
		asks:  asks,
		index: make(map[core.OrderId]*restingOrder),
	}
}

func (b *BtreeBook) Spec() core.SymbolSpecification { return b.spec }

func (b *BtreeBook) sideTree(action core.OrderAction) *levels {
	if action == core.Bid {
		return b.bids
	}
	return b.asks
}

func (b *BtreeBook) oppositeTree(action core.OrderAction) *levels {
	return b.sideTree(action.Opposite())
}

func crossAccept(action core.OrderAction, price core.Price) func(core.Price) bool {
	if action == core.Bid {
		return func(levelPrice core.Price) bool { return levelPrice <= price }
	}
	return func(levelPrice core.Price) bool { return levelPrice >= price }
}

func (b *BtreeBook) bestOpposite(action core.OrderAction) (core.Price, bool) {
	bucket, ok := b.oppositeTree(action).Min()
	if !ok {
		return 0, false
	}
	return bucket.Price, true
}

// Place admits a new order. Stop orders go straight into the stop pool;
// budget orders (FokBudget/IocBudget) sweep without a unit-price bound,
// capped instead by total notional; everything else matches (or rests)
// against a unit-price bound.
func (b *BtreeBook) Place(cmd *core.OrderCommand) core.ResultCode {
	switch cmd.OrderType {
	case core.StopLimit, core.StopMarket:
		return b.placeStop(cmd)
	}
	if cmd.OrderType.IsBudget() {
		return b.placeBudget(cmd)
	}
	return b.placeLimit(cmd)
}

func (b *BtreeBook) placeStop(cmd *core.OrderCommand) core.ResultCode {
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

func (b *BtreeBook) placeLimit(cmd *core.OrderCommand) core.ResultCode {
	if cmd.Size <= 0 {
		cmd.ResultCode = core.MatchingInvalidOrderSize
		return cmd.ResultCode
	}

	accept := crossAccept(cmd.Action, cmd.Price)

	// A reused order id never rests a second time: match it against the
	// book like any other taker and reject whatever it leaves unfilled,
	// instead of silently orphaning the order it would otherwise overwrite
	// in b.index.
	if _, exists := b.index[cmd.OrderId]; exists {
		matched, events := b.sweepLimit(cmd.Action, accept, cmd.Size, cmd.ReservePrice, cmd.Timestamp)
		cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
		if remaining := cmd.Size - matched; remaining > 0 {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, cmd.Price, cmd.ReservePrice))
		}
		cmd.ResultCode = core.Success
		b.refreshCache()
		b.triggerStops(events)
		return cmd.ResultCode
	}

	if cmd.OrderType == core.PostOnly {
		if best, ok := b.bestOpposite(cmd.Action); ok && accept(best) {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(cmd.Size, cmd.Price, cmd.ReservePrice))
			cmd.ResultCode = core.Success
			return cmd.ResultCode
		}
		b.restNew(cmd, 0)
		cmd.ResultCode = core.Success
		b.refreshCache()
		return cmd.ResultCode
	}

	if cmd.OrderType == core.Fok && b.availableVolume(cmd.Action, accept, cmd.Size) < cmd.Size {
		cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(cmd.Size, cmd.Price, cmd.ReservePrice))
		cmd.ResultCode = core.Success
		return cmd.ResultCode
	}

	matched, events := b.sweepLimit(cmd.Action, accept, cmd.Size, cmd.ReservePrice, cmd.Timestamp)
	cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
	remaining := cmd.Size - matched

	if remaining > 0 {
		if cmd.OrderType.NeverRests() {
			cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(remaining, cmd.Price, cmd.ReservePrice))
		} else {
			b.restNew(cmd, matched)
		}
	}

	cmd.ResultCode = core.Success
	b.refreshCache()
	b.triggerStops(events)
	return cmd.ResultCode
}

func (b *BtreeBook) placeBudget(cmd *core.OrderCommand) core.ResultCode {
	if cmd.Size <= 0 || cmd.Price <= 0 {
		cmd.ResultCode = core.MatchingInvalidOrderSize
		return cmd.ResultCode
	}

	if cmd.OrderType == core.FokBudget {
		fillable := b.simulateBudgetFill(cmd.Action, cmd.Price, cmd.Size)
		if fillable < cmd.Size {
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
	b.refreshCache()
	b.triggerStops(events)
	return cmd.ResultCode
}

// availableVolume sums resting volume across opposite-side levels the
// taker's price would reach, stopping as soon as it has seen at least
// need (it is only used to answer a >= need question, never an exact
// total). It never mutates the book: Fok uses it to decide, before
// touching anything, whether a full fill is even possible.
func (b *BtreeBook) availableVolume(action core.OrderAction, accept func(core.Price) bool, need core.Size) core.Size {
	var total core.Size
	b.oppositeTree(action).Scan(func(bucket *priceBucket) bool {
		if !accept(bucket.Price) {
			return false
		}
		total += bucket.TotalVolume
		return total < need
	})
	return total
}

// simulateBudgetFill is availableVolume's budget-bound counterpart: how
// much of needSize could be bought without exceeding budget, read-only.
func (b *BtreeBook) simulateBudgetFill(action core.OrderAction, budget core.Price, needSize core.Size) core.Size {
	var spent core.Price
	var filled core.Size
	b.oppositeTree(action).Scan(func(bucket *priceBucket) bool {
		remainingBudget := budget - spent
		if remainingBudget <= 0 {
			return false
		}
		affordable := core.Size(remainingBudget / bucket.Price)
		if affordable <= 0 {
			return false
		}
		levelNeed := needSize - filled
		if affordable < levelNeed {
			levelNeed = affordable
		}
		take := bucket.TotalVolume
		if take > levelNeed {
			take = levelNeed
		}
		filled += take
		spent += core.Price(take) * bucket.Price
		return filled < needSize
	})
	return filled
}

// sweepLimit walks the opposite side from best price outward while accept
// holds, matching up to need units and mutating the book as it goes.
func (b *BtreeBook) sweepLimit(action core.OrderAction, accept func(core.Price) bool, need core.Size, reservePrice core.Price, now int64) (core.Size, []core.MatcherEvent) {
	tree := b.oppositeTree(action)
	var matched core.Size
	var events []core.MatcherEvent
	for matched < need {
		bucket, ok := tree.Min()
		if !ok || !accept(bucket.Price) {
			break
		}
		m, evs, removed := matchLevel(bucket, action, reservePrice, need-matched, now)
		matched += m
		events = append(events, evs...)
		for _, id := range removed {
			delete(b.index, id)
		}
		if bucket.empty() {
			tree.Delete(bucket)
		}
	}
	return matched, events
}

// sweepBudget is sweepLimit's notional-bound counterpart: instead of a
// unit-price cutoff, each level is capped by how much of the remaining
// budget it can still afford.
func (b *BtreeBook) sweepBudget(action core.OrderAction, budget core.Price, need core.Size, reservePrice core.Price, now int64) (core.Size, []core.MatcherEvent) {
	tree := b.oppositeTree(action)
	var matched core.Size
	var spent core.Price
	var events []core.MatcherEvent
	for matched < need {
		bucket, ok := tree.Min()
		if !ok {
			break
		}
		remainingBudget := budget - spent
		if remainingBudget <= 0 {
			break
		}
		affordable := core.Size(remainingBudget / bucket.Price)
		if affordable <= 0 {
			break
		}
		levelNeed := need - matched
		if affordable < levelNeed {
			levelNeed = affordable
		}
		m, evs, removed := matchLevel(bucket, action, reservePrice, levelNeed, now)
		matched += m
		spent += core.Price(m) * bucket.Price
		events = append(events, evs...)
		for _, id := range removed {
			delete(b.index, id)
		}
		if bucket.empty() {
			tree.Delete(bucket)
		}
	}
	return matched, events
}

func (b *BtreeBook) restNew(cmd *core.OrderCommand, filled core.Size) {
	o := newRestingOrder(cmd, filled)
	b.index[o.OrderId] = o
	b.insertResting(o)
}

func (b *BtreeBook) insertResting(o *restingOrder) {
	tree := b.sideTree(o.Action)
	bucket, ok := tree.Get(&priceBucket{Price: o.Price})
	if !ok {
		bucket = newPriceBucket(o.Price)
		tree.Set(bucket)
	}
	bucket.add(o)
}

// triggerStops promotes every stop order the last trade price(s) in events
// crossed, reissuing each at its own stored price (a triggered StopMarket
// behaves exactly like a triggered StopLimit: it does not sweep the book).
func (b *BtreeBook) triggerStops(events []core.MatcherEvent) {
	for _, e := range events {
		if e.EventType != core.Trade {
			continue
		}
		for _, o := range b.stops.checkTriggers(e.Price) {
			b.reissueStop(o)
		}
	}
}

func (b *BtreeBook) reissueStop(o *restingOrder) {
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

// PopTriggeredStops drains the synthetic Place commands produced by stop
// orders this book triggered since the last call, for the pipeline to run
// through risk-post and the result consumer; they are already matched, so
// they skip risk-pre and matching, and they are not journaled.
func (b *BtreeBook) PopTriggeredStops() []*core.OrderCommand {
	out := b.triggeredQueue
	b.triggeredQueue = nil
	return out
}

func (b *BtreeBook) Cancel(cmd *core.OrderCommand) core.ResultCode {
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
	b.refreshCache()
	return cmd.ResultCode
}

func (b *BtreeBook) removeResting(o *restingOrder) {
	delete(b.index, o.OrderId)
	if o.StopPrice != nil && !o.Triggered {
		b.stops.removeById(o.OrderId)
		return
	}
	tree := b.sideTree(o.Action)
	bucket, ok := tree.Get(&priceBucket{Price: o.Price})
	if !ok {
		invariant.Check(false, "order %d indexed at price %d but its bucket is missing", o.OrderId, o.Price)
		return
	}
	bucket.cancelRemove(o)
	if bucket.empty() {
		tree.Delete(bucket)
	}
}

func (b *BtreeBook) Move(cmd *core.OrderCommand) core.ResultCode {
	o, ok := b.index[cmd.OrderId]
	if !ok || o.Uid != cmd.Uid {
		cmd.ResultCode = core.MatchingUnknownOrderId
		return cmd.ResultCode
	}
	if o.StopPrice != nil && !o.Triggered {
		cmd.ResultCode = core.MatchingUnsupportedCommand
		return cmd.ResultCode
	}
	// A bid's hold was computed from its reserve price, independent of its
	// limit price; raising the limit past that reserve price would let the
	// order buy at a price its hold never covered. Asks have no analogous
	// risk: their collateral is the base asset itself, already held in full
	// regardless of where the ask is priced.
	if o.Action == core.Bid && cmd.Price > o.ReservePrice {
		cmd.ResultCode = core.MatchingMoveFailedPriceOverRiskLimit
		return cmd.ResultCode
	}

	tree := b.sideTree(o.Action)
	oldBucket, ok := tree.Get(&priceBucket{Price: o.Price})
	invariant.Check(ok, "order %d indexed at price %d but its bucket is missing", o.OrderId, o.Price)
	oldBucket.cancelRemove(o)
	if oldBucket.empty() {
		tree.Delete(oldBucket)
	}

	o.Price = cmd.Price
	cmd.Action = o.Action

	accept := crossAccept(o.Action, o.Price)
	need := o.Remaining()
	matched, events := b.sweepLimit(o.Action, accept, need, o.ReservePrice, cmd.Timestamp)
	cmd.MatcherEvents = append(cmd.MatcherEvents, events...)
	o.Filled += matched

	if o.Remaining() > 0 {
		// Re-inserted at the back of its new (or still-current) price
		// level: a move always costs time priority, even when the price
		// does not actually change.
		b.insertResting(o)
	} else {
		delete(b.index, o.OrderId)
	}

	cmd.ResultCode = core.Success
	b.refreshCache()
	b.triggerStops(events)
	return cmd.ResultCode
}

func (b *BtreeBook) Reduce(cmd *core.OrderCommand) core.ResultCode {
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

	if o.StopPrice != nil && !o.Triggered {
		o.Size -= delta
	} else {
		tree := b.sideTree(o.Action)
		bucket, ok := tree.Get(&priceBucket{Price: o.Price})
		invariant.Check(ok, "order %d indexed at price %d but its bucket is missing", o.OrderId, o.Price)
		bucket.reduceSize(o, delta)
	}

	cmd.Action = o.Action
	cmd.Price = o.Price
	cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewReduceEvent(delta, o.Price, o.ReservePrice))
	cmd.ResultCode = core.Success
	b.refreshCache()
	return cmd.ResultCode
}

func (b *BtreeBook) L2Depth(levels int) L2Depth {
	var out L2Depth
	n := 0
	b.bids.Scan(func(bucket *priceBucket) bool {
		if n >= levels {
			return false
		}
		out.Bids = append(out.Bids, snapshotLevel(bucket))
		n++
		return true
	})
	n = 0
	b.asks.Scan(func(bucket *priceBucket) bool {
		if n >= levels {
			return false
		}
		out.Asks = append(out.Asks, snapshotLevel(bucket))
		n++
		return true
	})
	return out
}

func snapshotLevel(bucket *priceBucket) PriceLevel {
	return PriceLevel{
		Price:         bucket.Price,
		TotalVolume:   bucket.TotalVolume,
		VisibleVolume: bucket.VisibleVolume,
		OrderCount:    len(bucket.Orders),
	}
}

func (b *BtreeBook) TotalBidVolume() core.Size { return sumVolume(b.bids) }
func (b *BtreeBook) TotalAskVolume() core.Size { return sumVolume(b.asks) }

func sumVolume(tree *levels) core.Size {
	var total core.Size
	tree.Scan(func(bucket *priceBucket) bool {
		total += bucket.TotalVolume
		return true
	})
	return total
}

func (b *BtreeBook) refreshCache() {
	if bucket, ok := b.bids.Min(); ok {
		p := bucket.Price
		b.bestBidCache = &p
	} else {
		b.bestBidCache = nil
	}
	if bucket, ok := b.asks.Min(); ok {
		p := bucket.Price
		b.bestAskCache = &p
	} else {
		b.bestAskCache = nil
	}
}

func (b *BtreeBook) BestBid() (core.Price, bool) {
	if b.bestBidCache == nil {
		return 0, false
	}
	bucket, ok := b.bids.Min()
	invariant.Check(ok && bucket.Price == *b.bestBidCache, "best bid cache %d out of step with bid tree", *b.bestBidCache)
	return *b.bestBidCache, true
}

func (b *BtreeBook) BestAsk() (core.Price, bool) {
	if b.bestAskCache == nil {
		return 0, false
	}
	bucket, ok := b.asks.Min()
	invariant.Check(ok && bucket.Price == *b.bestAskCache, "best ask cache %d out of step with ask tree", *b.bestAskCache)
	return *b.bestAskCache, true
}
