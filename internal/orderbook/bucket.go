package orderbook

import "github.com/llc-993/matching-core/internal/core"

// priceBucket is every resting order at one price, in arrival order. It
// keeps its own running totals so the book never has to rescan a level to
// answer a depth query or decide whether it is now empty.
type priceBucket struct {
	Price         core.Price
	Orders        []*restingOrder
	TotalVolume   core.Size
	VisibleVolume core.Size
}

func newPriceBucket(price core.Price) *priceBucket {
	return &priceBucket{Price: price}
}

func (b *priceBucket) add(o *restingOrder) {
	remaining := o.Remaining()
	b.TotalVolume += remaining
	b.VisibleVolume += o.visibleOf(remaining)
	b.Orders = append(b.Orders, o)
}

// fill records a partial or full trade against o: oldRemaining is what
// computeRemainingLanes saw before this pass touched it, q is how much just
// traded.
func (b *priceBucket) fill(o *restingOrder, oldRemaining, q core.Size) {
	oldVisible := o.visibleOf(oldRemaining)
	o.Filled += q
	newVisible := o.visibleOf(o.Remaining())
	b.TotalVolume -= q
	b.VisibleVolume += newVisible - oldVisible
}

// evict drops an order that expired before it could be matched, removing
// its entire unconsumed remainder from the bucket's running totals. The
// order's own reservation is not refunded here: lazy expiry purges the book
// entry only. The caller also drops the order from the book's order-id
// index, so a later Cancel of that id returns MatchingUnknownOrderId and
// emits no Reject; nothing in the core refunds an evicted order's hold.
func (b *priceBucket) evict(o *restingOrder, oldRemaining core.Size) {
	b.TotalVolume -= oldRemaining
	b.VisibleVolume -= o.visibleOf(oldRemaining)
}

// removeById removes a single order from the bucket's arrival-ordered slice
// without disturbing the relative order of the rest, and returns it.
func (b *priceBucket) removeById(id core.OrderId) *restingOrder {
	for i, o := range b.Orders {
		if o.OrderId == id {
			removed := o
			b.Orders = append(b.Orders[:i], b.Orders[i+1:]...)
			return removed
		}
	}
	return nil
}

func (b *priceBucket) removeIds(ids []core.OrderId) {
	for _, id := range ids {
		b.removeById(id)
	}
}

func (b *priceBucket) empty() bool {
	return len(b.Orders) == 0
}

// cancelRemove removes o from the bucket and backs its remaining volume out
// of the running totals; used by Cancel/Move, which (unlike matching)
// never already adjusted the totals before calling this.
func (b *priceBucket) cancelRemove(o *restingOrder) {
	remaining := o.Remaining()
	if removed := b.removeById(o.OrderId); removed != nil {
		b.TotalVolume -= remaining
		b.VisibleVolume -= o.visibleOf(remaining)
	}
}

// reduceSize shrinks a resting order's size by delta in place, adjusting
// TotalVolume by delta and VisibleVolume by the change in the order's
// visible portion (delta must already be validated as 0 < delta <
// remaining by the caller).
func (b *priceBucket) reduceSize(o *restingOrder, delta core.Size) {
	oldVisible := o.visibleOf(o.Remaining())
	o.Size -= delta
	b.TotalVolume -= delta
	if o.VisibleSize != nil && *o.VisibleSize > o.Remaining() {
		*o.VisibleSize = o.Remaining()
	}
	b.VisibleVolume += o.visibleOf(o.Remaining()) - oldVisible
}
