package orderbook

import "github.com/llc-993/matching-core/internal/core"

func toSnapshot(o *restingOrder, isStop bool) OrderSnapshot {
	return OrderSnapshot{
		OrderId:      o.OrderId,
		Uid:          o.Uid,
		Price:        o.Price,
		Size:         o.Size,
		Filled:       o.Filled,
		Action:       o.Action,
		OrderType:    o.OrderType,
		ReservePrice: o.ReservePrice,
		Timestamp:    o.Timestamp,
		StopPrice:    o.StopPrice,
		VisibleSize:  o.VisibleSize,
		ExpireTime:   o.ExpireTime,
		Triggered:    o.Triggered,
		IsStop:       isStop,
	}
}

func fromSnapshot(s OrderSnapshot) *restingOrder {
	return &restingOrder{
		OrderId:      s.OrderId,
		Uid:          s.Uid,
		Price:        s.Price,
		Size:         s.Size,
		Filled:       s.Filled,
		Action:       s.Action,
		OrderType:    s.OrderType,
		ReservePrice: s.ReservePrice,
		Timestamp:    s.Timestamp,
		StopPrice:    s.StopPrice,
		VisibleSize:  s.VisibleSize,
		ExpireTime:   s.ExpireTime,
		Triggered:    s.Triggered,
	}
}

// Snapshot walks every resting bid, then every resting ask, each in
// deterministic (price, then arrival) order, then every pending stop in
// arrival order.
func (b *BtreeBook) Snapshot() []OrderSnapshot {
	var out []OrderSnapshot
	b.bids.Scan(func(bucket *priceBucket) bool {
		for _, o := range bucket.Orders {
			out = append(out, toSnapshot(o, false))
		}
		return true
	})
	b.asks.Scan(func(bucket *priceBucket) bool {
		for _, o := range bucket.Orders {
			out = append(out, toSnapshot(o, false))
		}
		return true
	})
	for _, o := range b.stops.orders {
		out = append(out, toSnapshot(o, true))
	}
	return out
}

// Restore rebuilds resting state directly, bypassing matching entirely:
// the orders in a snapshot already cleared matching once, and re-matching
// them against each other on load would either no-op (book was stable) or
// indicate the snapshot was taken mid-match, which never happens since
// snapshots run between commands.
func (b *BtreeBook) Restore(orders []OrderSnapshot) {
	for _, s := range orders {
		o := fromSnapshot(s)
		b.index[o.OrderId] = o
		if s.IsStop {
			b.stops.add(o)
			continue
		}
		b.insertResting(o)
	}
	b.refreshCache()
}

func (b *NaiveBook) Snapshot() []OrderSnapshot {
	var out []OrderSnapshot
	for _, o := range b.bidOrders {
		out = append(out, toSnapshot(o, false))
	}
	for _, o := range b.askOrders {
		out = append(out, toSnapshot(o, false))
	}
	for _, o := range b.stops.orders {
		out = append(out, toSnapshot(o, true))
	}
	return out
}

func (b *NaiveBook) Restore(orders []OrderSnapshot) {
	for _, s := range orders {
		o := fromSnapshot(s)
		b.index[o.OrderId] = o
		if s.IsStop {
			b.stops.add(o)
			continue
		}
		slice := b.sideSlice(o.Action)
		*slice = append(*slice, o)
	}
	b.sortSide(core.Bid)
	b.sortSide(core.Ask)
}
