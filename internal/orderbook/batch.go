package orderbook

import "github.com/llc-993/matching-core/internal/core"

// computeRemainingLanes precomputes size-filled for every order in a price
// level up front, independently of one another. Real hardware can run this
// step across lanes; the scalar loop in matchLevel only ever reads it, it
// never recomputes an order's remaining size mid-scan.
func computeRemainingLanes(orders []*restingOrder) []core.Size {
	lanes := make([]core.Size, len(orders))
	for i, o := range orders {
		lanes[i] = o.Remaining()
	}
	return lanes
}

// matchLevel is the scalar prefix-sum pass over one price level: each order
// absorbs as much of the taker's outstanding need as it has left, in
// arrival order, until the need is exhausted or the level is. It returns the
// total matched against this level, the trade events produced, and the
// order IDs that must be removed from the book (fully filled, or evicted on
// encountering an expiry).
func matchLevel(bucket *priceBucket, takerAction core.OrderAction, takerReservePrice core.Price, need core.Size, now int64) (core.Size, []core.MatcherEvent, []core.OrderId) {
	if need <= 0 || len(bucket.Orders) == 0 {
		return 0, nil, nil
	}

	lanes := computeRemainingLanes(bucket.Orders)

	var matched core.Size
	var events []core.MatcherEvent
	var removed []core.OrderId

	for i, o := range bucket.Orders {
		if matched >= need {
			break
		}
		if o.ExpireTime != nil && now > *o.ExpireTime {
			bucket.evict(o, lanes[i])
			removed = append(removed, o.OrderId)
			continue
		}

		q := lanes[i]
		if left := need - matched; q > left {
			q = left
		}
		if q <= 0 {
			continue
		}

		bucket.fill(o, lanes[i], q)
		matched += q

		bidderHoldPrice := takerReservePrice
		if takerAction == core.Ask {
			bidderHoldPrice = o.ReservePrice
		}
		events = append(events, core.NewTradeEvent(q, bucket.Price, o.OrderId, o.Uid, bidderHoldPrice))

		if o.Filled >= o.Size {
			removed = append(removed, o.OrderId)
		}
	}

	if len(removed) > 0 {
		bucket.removeIds(removed)
	}
	return matched, events, removed
}
