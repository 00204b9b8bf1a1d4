package orderbook

import "github.com/llc-993/matching-core/internal/core"

// stopPool holds StopLimit/StopMarket orders that have not yet triggered.
// They are invisible to matching and to depth queries; checkTriggers walks
// the pool after every trade and promotes anything the new last price
// crosses into a plain resting/matching attempt at the order's own stored
// price (StopMarket does not sweep the book on trigger: it reissues at its
// stored price exactly like a StopLimit, per the Move/Stop clarification in
// SPEC_FULL.md §4.1).
type stopPool struct {
	orders []*restingOrder
}

func (p *stopPool) add(o *restingOrder) {
	p.orders = append(p.orders, o)
}

func (p *stopPool) removeById(id core.OrderId) *restingOrder {
	for i, o := range p.orders {
		if o.OrderId == id {
			removed := o
			p.orders = append(p.orders[:i], p.orders[i+1:]...)
			return removed
		}
	}
	return nil
}

// triggered reports whether a stop with the given action/stop price has
// crossed, given the latest trade price: a buy stop (Bid) triggers when the
// market trades at or above its stop price, a sell stop (Ask) when the
// market trades at or below it.
func triggered(action core.OrderAction, stopPrice core.Price, lastTradePrice core.Price) bool {
	if action == core.Bid {
		return lastTradePrice >= stopPrice
	}
	return lastTradePrice <= stopPrice
}

// checkTriggers removes every stop order the last trade price crossed and
// returns them in trigger (arrival) order, for the caller to re-submit
// through the normal place path.
func (p *stopPool) checkTriggers(lastTradePrice core.Price) []*restingOrder {
	if len(p.orders) == 0 {
		return nil
	}
	var fired []*restingOrder
	remaining := p.orders[:0]
	for _, o := range p.orders {
		if o.StopPrice != nil && triggered(o.Action, *o.StopPrice, lastTradePrice) {
			o.Triggered = true
			fired = append(fired, o)
		} else {
			remaining = append(remaining, o)
		}
	}
	p.orders = remaining
	return fired
}
