package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llc-993/matching-core/internal/core"
)

const (
	testQuote core.Currency = 1
	testBase  core.Currency = 2
)

func testSpec() core.SymbolSpecification {
	return core.SymbolSpecification{
		SymbolId:      1,
		SymbolType:    core.Spot,
		BaseCurrency:  testBase,
		QuoteCurrency: testQuote,
		BaseScaleK:    1,
		QuoteScaleK:   1,
		TakerFee:      1,
		MakerFee:      0,
	}
}

func newSingleShardEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(0, 1)
	e.AddSymbol(testSpec())
	return e
}

func addUserWithBalance(t *testing.T, e *Engine, uid core.UserId, currency core.Currency, amount int64) {
	t.Helper()
	addCmd := core.NewCommand(core.AddUser)
	addCmd.Uid = uid
	e.PreProcess(addCmd)
	require.Equal(t, core.Success, addCmd.ResultCode)

	adjust := core.NewCommand(core.BalanceAdjustment)
	adjust.Uid = uid
	adjust.OrderId = core.OrderId(uid)*1000 + 1
	adjust.Symbol = core.SymbolId(currency)
	adjust.Price = core.Price(amount)
	e.PreProcess(adjust)
	require.Equal(t, core.Success, adjust.ResultCode)
}

func TestAddUserRejectsDuplicate(t *testing.T) {
	e := newSingleShardEngine(t)
	cmd := core.NewCommand(core.AddUser)
	cmd.Uid = 1
	e.PreProcess(cmd)
	assert.Equal(t, core.Success, cmd.ResultCode)

	cmd2 := core.NewCommand(core.AddUser)
	cmd2.Uid = 1
	e.PreProcess(cmd2)
	assert.Equal(t, core.UserMgmtUserAlreadyExists, cmd2.ResultCode)
}

func TestBalanceAdjustmentIsIdempotent(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 100)

	replay := core.NewCommand(core.BalanceAdjustment)
	replay.Uid = 1
	replay.OrderId = 1001
	replay.Symbol = core.SymbolId(testQuote)
	replay.Price = 100
	e.PreProcess(replay)

	profile := e.users[1]
	assert.Equal(t, int64(100), profile.Accounts[testQuote])
}

func TestPlaceOrderRejectsInsufficientFunds(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 50)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = 1
	cmd.Symbol = 1
	cmd.Action = core.Bid
	cmd.Price = 10
	cmd.ReservePrice = 10
	cmd.Size = 10
	e.PreProcess(cmd)

	assert.Equal(t, core.RiskNsf, cmd.ResultCode)
}

func TestPlaceOrderHoldsFundsOnSuccess(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 1000)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = 1
	cmd.Symbol = 1
	cmd.Action = core.Bid
	cmd.Price = 10
	cmd.ReservePrice = 10
	cmd.Size = 10
	e.PreProcess(cmd)

	require.Equal(t, core.ValidForMatchingEngine, cmd.ResultCode)
	// hold = size*reserve*quoteScaleK + size*takerFee = 100 + 10 = 110
	assert.Equal(t, int64(890), e.users[1].Accounts[testQuote])
}

func TestPlaceOrderRejectsSuspendedUser(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 1000)

	suspend := core.NewCommand(core.SuspendUser)
	suspend.Uid = 1
	e.PreProcess(suspend)
	require.Equal(t, core.Success, suspend.ResultCode)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = 1
	cmd.Symbol = 1
	cmd.Action = core.Bid
	cmd.Price = 10
	cmd.ReservePrice = 10
	cmd.Size = 1
	e.PreProcess(cmd)
	assert.Equal(t, core.AuthInvalidUser, cmd.ResultCode)
}

func TestSettleTradeCreditsBothSides(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testBase, 1000)  // maker ask
	addUserWithBalance(t, e, 2, testQuote, 2000) // taker bid, hold exceeds 1000

	// maker asks 10 @ price 100
	ask := core.NewCommand(core.PlaceOrder)
	ask.Uid = 1
	ask.Symbol = 1
	ask.Action = core.Ask
	ask.Price = 100
	ask.ReservePrice = 100
	ask.Size = 10
	e.PreProcess(ask)
	require.Equal(t, core.ValidForMatchingEngine, ask.ResultCode)

	// taker bid matches fully, reserve price above trade price (price improvement)
	bid := core.NewCommand(core.PlaceOrder)
	bid.Uid = 2
	bid.Symbol = 1
	bid.Action = core.Bid
	bid.Price = 110
	bid.ReservePrice = 110
	bid.Size = 10
	e.PreProcess(bid)
	require.Equal(t, core.ValidForMatchingEngine, bid.ResultCode)

	bid.MatcherEvents = append(bid.MatcherEvents, core.NewTradeEvent(10, 100, 1, 1, 110))
	e.PostProcess(bid)

	maker := e.users[1]
	taker := e.users[2]
	// maker sold 10 base @100 quote, makerFee 0 -> +1000 quote
	assert.Equal(t, int64(1000), maker.Accounts[testQuote])
	// taker's base balance credited 10
	assert.Equal(t, int64(10), taker.Accounts[testBase])
	// hold was 10*110 + 10*1 = 1110, leaving 890; price improvement refund
	// of (110-100)*10 = 100 brings it back to 990
	assert.Equal(t, int64(990), taker.Accounts[testQuote])
}

func TestSettleRefundReturnsHoldOnReject(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 1000)

	cmd := core.NewCommand(core.PlaceOrder)
	cmd.Uid = 1
	cmd.Symbol = 1
	cmd.Action = core.Bid
	cmd.Price = 100
	cmd.ReservePrice = 100
	cmd.Size = 5
	e.PreProcess(cmd)
	require.Equal(t, core.ValidForMatchingEngine, cmd.ResultCode)

	heldBalance := e.users[1].Accounts[testQuote]

	cmd.MatcherEvents = append(cmd.MatcherEvents, core.NewRejectEvent(5, 100, 100))
	e.PostProcess(cmd)

	refund := int64(5)*int64(100)*1 + int64(5)*1
	assert.Equal(t, heldBalance+refund, e.users[1].Accounts[testQuote])
	assert.Equal(t, int64(1000), e.users[1].Accounts[testQuote])
}

func TestEngineOwnsOnlyItsShard(t *testing.T) {
	e := NewEngine(1, 2)
	// uid 2 has low bit 0, shard 1 does not own it
	assert.False(t, e.ownsUid(2))
	assert.True(t, e.ownsUid(1))

	cmd := core.NewCommand(core.AddUser)
	cmd.Uid = 2
	e.PreProcess(cmd)
	assert.Equal(t, core.New, cmd.ResultCode)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newSingleShardEngine(t)
	addUserWithBalance(t, e, 1, testQuote, 500)
	addUserWithBalance(t, e, 2, testBase, 300)

	snap := e.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, core.UserId(1), snap[0].Uid)
	assert.Equal(t, core.UserId(2), snap[1].Uid)

	restored := NewEngine(0, 1)
	restored.AddSymbol(testSpec())
	restored.Restore(snap)

	assert.Equal(t, e.users[1].Accounts, restored.users[1].Accounts)
	assert.Equal(t, e.users[2].Accounts, restored.users[2].Accounts)

	// idempotency window survives the round trip: replaying the same
	// adjustment id against the restored engine is still a no-op
	replay := core.NewCommand(core.BalanceAdjustment)
	replay.Uid = 1
	replay.OrderId = 1001
	replay.Symbol = core.SymbolId(testQuote)
	replay.Price = 999
	restored.PreProcess(replay)
	assert.Equal(t, int64(500), restored.users[1].Accounts[testQuote])
}
