package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llc-993/matching-core/internal/core"
)

func testSpec() core.SymbolSpecification {
	return core.SymbolSpecification{
		SymbolId:      1,
		SymbolType:    core.Spot,
		BaseCurrency:  1,
		QuoteCurrency: 2,
		BaseScaleK:    1,
		QuoteScaleK:   1,
		TakerFee:      0,
		MakerFee:      0,
	}
}

func placeCmd(uid core.UserId, orderId core.OrderId, action core.OrderAction, price core.Price, size core.Size, orderType core.OrderType) *core.OrderCommand {
	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = uid
	cmd.OrderId = orderId
	cmd.Symbol = 1
	cmd.Action = action
	cmd.Price = price
	cmd.ReservePrice = price
	cmd.Size = size
	cmd.OrderType = orderType
	cmd.Timestamp = 1000
	return cmd
}

func bothBooks(spec core.SymbolSpecification) []Book {
	return []Book{NewBtreeBook(spec), NewNaiveBook(spec)}
}

func TestPlaceRestsWhenNoCross(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		cmd := placeCmd(1, 1, core.Bid, 100, 10, core.Gtc)
		rc := book.Place(cmd)
		assert.Equal(t, core.Success, rc)
		assert.Empty(t, cmd.MatcherEvents)

		bestBid, ok := book.BestBid()
		require.True(t, ok)
		assert.Equal(t, core.Price(100), bestBid)
		assert.Equal(t, core.Size(10), book.TotalBidVolume())
	}
}

func TestPlaceCrossesAndTrades(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 100, 10, core.Gtc))

		taker := placeCmd(2, 2, core.Bid, 100, 4, core.Gtc)
		book.Place(taker)

		require.Len(t, taker.MatcherEvents, 1)
		ev := taker.MatcherEvents[0]
		assert.Equal(t, core.Trade, ev.EventType)
		assert.Equal(t, core.Size(4), ev.Size)
		assert.Equal(t, core.Price(100), ev.Price)
		assert.Equal(t, core.OrderId(1), ev.MatchedOrderId)
		assert.Equal(t, core.Size(6), book.TotalAskVolume())
	}
}

func TestFokRejectsWhenNotFullyFillable(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 100, 5, core.Gtc))

		taker := placeCmd(2, 2, core.Bid, 100, 10, core.Fok)
		book.Place(taker)

		require.Len(t, taker.MatcherEvents, 1)
		assert.Equal(t, core.Reject, taker.MatcherEvents[0].EventType)
		assert.Equal(t, core.Size(5), book.TotalAskVolume())
	}
}

func TestIocRestsNothingOnPartialFill(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 100, 5, core.Gtc))

		taker := placeCmd(2, 2, core.Bid, 100, 10, core.Ioc)
		book.Place(taker)

		var trade, reject bool
		for _, ev := range taker.MatcherEvents {
			if ev.EventType == core.Trade {
				trade = true
			}
			if ev.EventType == core.Reject {
				reject = true
				assert.Equal(t, core.Size(5), ev.Size)
			}
		}
		assert.True(t, trade)
		assert.True(t, reject)
		_, ok := book.BestBid()
		assert.False(t, ok)
	}
}

func TestPostOnlyRejectsWhenItWouldCross(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 100, 5, core.Gtc))

		maker := placeCmd(2, 2, core.Bid, 100, 5, core.PostOnly)
		book.Place(maker)

		require.Len(t, maker.MatcherEvents, 1)
		assert.Equal(t, core.Reject, maker.MatcherEvents[0].EventType)
		_, ok := book.BestBid()
		assert.False(t, ok)
	}
}

func TestBudgetOrderMatchesByNotionalNotUnitPrice(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 10, 10, core.Gtc))
		book.Place(placeCmd(2, 2, core.Ask, 20, 10, core.Gtc))

		taker := placeCmd(3, 3, core.Bid, 150, 100, core.IocBudget)
		book.Place(taker)

		var filled core.Size
		for _, ev := range taker.MatcherEvents {
			if ev.EventType == core.Trade {
				filled += ev.Size
			}
		}
		// 10 units @10 = 100 notional, leaving 50 budget, 2 more units @20 = 40
		assert.Equal(t, core.Size(12), filled)
	}
}

func TestBudgetOrderMatchesByNotionalWhenReservePriceDiverges(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 10, 10, core.Gtc))
		book.Place(placeCmd(2, 2, core.Ask, 20, 10, core.Gtc))

		// ReservePrice is far above Price on purpose: risk-pre never requires
		// the two to match for a budget order (risk.placeOrderRiskCheck skips
		// RiskInvalidReserveBidPrice for IsBudget), so the book must still
		// treat Price, not ReservePrice, as the notional ceiling.
		taker := placeCmd(3, 3, core.Bid, 150, 100, core.IocBudget)
		taker.ReservePrice = 1000
		book.Place(taker)

		var filled core.Size
		var bidderHoldPrice core.Price
		for _, ev := range taker.MatcherEvents {
			if ev.EventType == core.Trade {
				filled += ev.Size
				bidderHoldPrice = ev.BidderHoldPrice
			}
		}
		assert.Equal(t, core.Size(12), filled)
		assert.Equal(t, core.Price(150), bidderHoldPrice, "trade events must carry the budget basis, not the unused reserve price")
	}
}

func TestDuplicateOrderIdMatchesInsteadOfOverwritingRestingOrder(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Bid, 100, 10, core.Gtc))

		// a second Place under the same order id must never silently
		// replace the resting order in the index while leaving it behind,
		// unreachable, in its price bucket
		dup := placeCmd(1, 1, core.Bid, 90, 3, core.Gtc)
		rc := book.Place(dup)
		assert.Equal(t, core.Success, rc)
		require.Len(t, dup.MatcherEvents, 1)
		assert.Equal(t, core.Reject, dup.MatcherEvents[0].EventType)

		assert.Equal(t, core.Size(10), book.TotalBidVolume())

		cancel := core.NewCommand(core.CancelOrder)
		cancel.Uid = 1
		cancel.OrderId = 1
		rc = book.Cancel(cancel)
		assert.Equal(t, core.Success, rc)
		_, ok := book.BestBid()
		assert.False(t, ok, "the original order must still be reachable by id through a single cancel")
	}
}

func TestDuplicateOrderIdMatchesAgainstCrossingBook(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Ask, 100, 10, core.Gtc))
		book.Place(placeCmd(2, 2, core.Bid, 90, 4, core.Gtc))

		// reusing uid 2's order id as a crossing taker must match against
		// the book, never rest a second resting order under that id
		dup := placeCmd(2, 2, core.Bid, 100, 6, core.Gtc)
		book.Place(dup)

		require.Len(t, dup.MatcherEvents, 1)
		assert.Equal(t, core.Trade, dup.MatcherEvents[0].EventType)
		assert.Equal(t, core.Size(6), dup.MatcherEvents[0].Size)
		assert.Equal(t, core.Size(4), book.TotalAskVolume())
		assert.Equal(t, core.Size(4), book.TotalBidVolume())
	}
}

func TestCancelRequiresOwningUid(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Bid, 100, 10, core.Gtc))

		cancel := core.NewCommand(core.CancelOrder)
		cancel.Uid = 2
		cancel.OrderId = 1
		rc := book.Cancel(cancel)
		assert.Equal(t, core.MatchingUnknownOrderId, rc)

		cancel.Uid = 1
		rc = book.Cancel(cancel)
		assert.Equal(t, core.Success, rc)
		_, ok := book.BestBid()
		assert.False(t, ok)
	}
}

func TestReduceShrinksRestingOrder(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		book.Place(placeCmd(1, 1, core.Bid, 100, 10, core.Gtc))

		reduce := core.NewCommand(core.ReduceOrder)
		reduce.Uid = 1
		reduce.OrderId = 1
		reduce.Size = 4
		rc := book.Reduce(reduce)
		require.Equal(t, core.Success, rc)
		assert.Equal(t, core.Size(6), book.TotalBidVolume())
	}
}

func TestIcebergShowsOnlyVisibleVolume(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		visible := core.Size(2)
		cmd := placeCmd(1, 1, core.Ask, 100, 10, core.Iceberg)
		cmd.VisibleSize = &visible
		book.Place(cmd)

		depth := book.L2Depth(5)
		require.Len(t, depth.Asks, 1)
		assert.Equal(t, core.Size(10), depth.Asks[0].TotalVolume)
		assert.Equal(t, core.Size(2), depth.Asks[0].VisibleVolume)
	}
}

func TestStopOrderTriggersOnCrossingTrade(t *testing.T) {
	for _, book := range bothBooks(testSpec()) {
		stopPrice := core.Price(105)
		stop := placeCmd(1, 1, core.Bid, 105, 5, core.StopLimit)
		stop.StopPrice = &stopPrice
		book.Place(stop)

		// stop is invisible until triggered
		_, ok := book.BestBid()
		assert.False(t, ok)

		book.Place(placeCmd(2, 2, core.Ask, 105, 20, core.Gtc))
		taker := placeCmd(3, 3, core.Bid, 105, 5, core.Gtc)
		book.Place(taker)

		triggered := book.PopTriggeredStops()
		require.Len(t, triggered, 1)
		assert.Equal(t, core.OrderId(1), triggered[0].OrderId)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	spec := testSpec()
	original := NewBtreeBook(spec)
	original.Place(placeCmd(1, 1, core.Bid, 100, 10, core.Gtc))
	original.Place(placeCmd(2, 2, core.Bid, 99, 5, core.Gtc))
	original.Place(placeCmd(3, 3, core.Ask, 110, 7, core.Gtc))
	stopPrice := core.Price(120)
	stop := placeCmd(4, 4, core.Bid, 120, 3, core.StopLimit)
	stop.StopPrice = &stopPrice
	original.Place(stop)

	snap := original.Snapshot()
	restored := NewBtreeBook(spec)
	restored.Restore(snap)

	assert.Equal(t, original.TotalBidVolume(), restored.TotalBidVolume())
	assert.Equal(t, original.TotalAskVolume(), restored.TotalAskVolume())

	origBid, _ := original.BestBid()
	restBid, _ := restored.BestBid()
	assert.Equal(t, origBid, restBid)

	assert.Equal(t, original.Snapshot(), restored.Snapshot())
}

func TestMoveFailsWhenBidPriceExceedsReserve(t *testing.T) {
	book := NewBtreeBook(testSpec())
	cmd := placeCmd(1, 1, core.Bid, 90, 10, core.Gtc)
	cmd.ReservePrice = 95
	book.Place(cmd)

	move := core.NewCommand(core.MoveOrder)
	move.Uid = 1
	move.OrderId = 1
	move.Price = 100
	rc := book.Move(move)
	assert.Equal(t, core.MatchingMoveFailedPriceOverRiskLimit, rc)
}
