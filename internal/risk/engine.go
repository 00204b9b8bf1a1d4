package risk

import (
	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/invariant"
)

// Engine owns every user whose uid & shard_mask selects this shard. One
// Engine runs per risk shard, entirely independent of every other shard:
// the pipeline hands every command to every shard at pre- and
// post-process, and each shard acts only where it owns the command's own
// uid (or the matched maker's uid, for post-process settlement of the
// other side of a trade).
type Engine struct {
	shardId   int
	shardMask uint64

	users   map[core.UserId]*UserProfile
	symbols map[core.SymbolId]core.SymbolSpecification
}

func NewEngine(shardId, numShards int) *Engine {
	invariant.Check(numShards > 0 && numShards&(numShards-1) == 0, "num_shards %d is not a power of two", numShards)
	return &Engine{
		shardId:   shardId,
		shardMask: uint64(numShards - 1),
		users:     make(map[core.UserId]*UserProfile),
		symbols:   make(map[core.SymbolId]core.SymbolSpecification),
	}
}

func (e *Engine) ownsUid(uid core.UserId) bool {
	return e.shardMask == 0 || (uint64(uid)&e.shardMask) == uint64(e.shardId)
}

func (e *Engine) AddSymbol(spec core.SymbolSpecification) {
	e.symbols[spec.SymbolId] = spec
}

// PreProcess reserves funds ahead of matching. Only AddUser/BalanceAdjustment/
// SuspendUser/ResumeUser/PlaceOrder ever carry a uid this stage should
// act on; every other command type passes through untouched.
func (e *Engine) PreProcess(cmd *core.OrderCommand) {
	switch cmd.Command {
	case core.PlaceOrder:
		if e.ownsUid(cmd.Uid) {
			cmd.ResultCode = e.placeOrderRiskCheck(cmd)
		}
	case core.AddUser:
		if e.ownsUid(cmd.Uid) {
			cmd.ResultCode = e.addUser(cmd.Uid)
		}
	case core.BalanceAdjustment:
		if e.ownsUid(cmd.Uid) {
			cmd.ResultCode = e.balanceAdjustment(cmd)
		}
	case core.SuspendUser:
		if e.ownsUid(cmd.Uid) {
			cmd.ResultCode = e.setSuspended(cmd.Uid, true)
		}
	case core.ResumeUser:
		if e.ownsUid(cmd.Uid) {
			cmd.ResultCode = e.setSuspended(cmd.Uid, false)
		}
	}
}

func (e *Engine) addUser(uid core.UserId) core.ResultCode {
	if _, exists := e.users[uid]; exists {
		return core.UserMgmtUserAlreadyExists
	}
	e.users[uid] = NewUserProfile(uid)
	return core.Success
}

func (e *Engine) setSuspended(uid core.UserId, suspended bool) core.ResultCode {
	profile, ok := e.users[uid]
	if !ok {
		return core.AuthInvalidUser
	}
	profile.Suspended = suspended
	return core.Success
}

// balanceAdjustment applies a signed credit/debit. cmd.Symbol carries the
// currency id and cmd.Price the signed amount for this command type;
// cmd.OrderId is the caller-supplied transaction id that makes the
// adjustment idempotent under at-least-once delivery.
func (e *Engine) balanceAdjustment(cmd *core.OrderCommand) core.ResultCode {
	profile, ok := e.users[cmd.Uid]
	if !ok {
		return core.AuthInvalidUser
	}
	if profile.alreadyApplied(cmd.OrderId) {
		return core.Success
	}
	currency := core.Currency(cmd.Symbol)
	profile.Accounts[currency] += int64(cmd.Price)
	profile.recordApplied(cmd.OrderId)
	return core.Success
}

func (e *Engine) placeOrderRiskCheck(cmd *core.OrderCommand) core.ResultCode {
	profile, ok := e.users[cmd.Uid]
	if !ok {
		return core.AuthInvalidUser
	}
	if profile.Suspended {
		return core.AuthInvalidUser
	}

	spec, ok := e.symbols[cmd.Symbol]
	if !ok {
		return core.InvalidSymbol
	}

	if spec.SymbolType.IsMarginBearing() && spec.MarginAllowance(cmd.Action) <= 0 {
		return core.RiskMarginTradingDisabled
	}

	if cmd.Action == core.Bid && !cmd.OrderType.IsBudget() && cmd.ReservePrice < cmd.Price {
		return core.RiskInvalidReserveBidPrice
	}
	if cmd.Action == core.Ask && int64(cmd.Price)*spec.QuoteScaleK < spec.TakerFee {
		return core.RiskAskPriceLowerThanFee
	}

	currency := spec.CollateralCurrency(cmd.Action)
	holdAmount := computeHold(cmd, spec)

	balance := profile.Accounts[currency]
	if balance < holdAmount {
		return core.RiskNsf
	}
	profile.Accounts[currency] = balance - holdAmount
	return core.ValidForMatchingEngine
}

// computeHold mirrors the settlement formulas in PostProcess exactly: a
// bid holds against its reserve price (or, for a budget order, its
// notional ceiling) plus the taker fee on the full size; an ask holds the
// base asset itself, unconditionally, since there is no price dimension
// to a sell order's collateral.
func computeHold(cmd *core.OrderCommand, spec core.SymbolSpecification) int64 {
	if cmd.Action == core.Ask {
		return int64(cmd.Size) * spec.BaseScaleK
	}
	price := cmd.ReservePrice
	if cmd.OrderType.IsBudget() {
		price = cmd.Price
	}
	return int64(cmd.Size)*int64(price)*spec.QuoteScaleK + int64(cmd.Size)*spec.TakerFee
}

// PostProcess settles every matcher event a command carries: trades credit
// both sides of the fill, rejects/reduces release the portion of a hold
// that will now never trade.
func (e *Engine) PostProcess(cmd *core.OrderCommand) {
	if len(cmd.MatcherEvents) == 0 {
		return
	}
	spec, ok := e.symbols[cmd.Symbol]
	if !ok {
		return
	}
	takerSell := cmd.Action == core.Ask

	for _, ev := range cmd.MatcherEvents {
		switch ev.EventType {
		case core.Trade:
			e.settleTrade(cmd, ev, spec, takerSell)
		case core.Reject, core.Reduce:
			e.settleRefund(cmd, ev, spec, takerSell)
		}
	}
	cmd.ResultCode = core.Success
}

func (e *Engine) settleTrade(cmd *core.OrderCommand, ev core.MatcherEvent, spec core.SymbolSpecification, takerSell bool) {
	if e.ownsUid(cmd.Uid) {
		if taker, ok := e.users[cmd.Uid]; ok {
			if takerSell {
				amount := int64(ev.Size)*int64(ev.Price)*spec.QuoteScaleK - int64(ev.Size)*spec.TakerFee
				taker.Accounts[spec.QuoteCurrency] += amount
			} else {
				priceDiff := int64(ev.BidderHoldPrice) - int64(ev.Price)
				refund := int64(ev.Size) * priceDiff * spec.QuoteScaleK
				taker.Accounts[spec.QuoteCurrency] += refund
				taker.Accounts[spec.BaseCurrency] += int64(ev.Size) * spec.BaseScaleK
			}
		}
	}

	if e.ownsUid(ev.MatchedOrderUid) {
		if maker, ok := e.users[ev.MatchedOrderUid]; ok {
			if takerSell {
				priceDiff := int64(ev.BidderHoldPrice) - int64(ev.Price)
				refund := int64(ev.Size) * priceDiff * spec.QuoteScaleK
				maker.Accounts[spec.QuoteCurrency] += refund
				maker.Accounts[spec.BaseCurrency] += int64(ev.Size) * spec.BaseScaleK
			} else {
				amount := int64(ev.Size)*int64(ev.Price)*spec.QuoteScaleK - int64(ev.Size)*spec.MakerFee
				maker.Accounts[spec.QuoteCurrency] += amount
			}
		}
	}
}

func (e *Engine) settleRefund(cmd *core.OrderCommand, ev core.MatcherEvent, spec core.SymbolSpecification, takerSell bool) {
	if !e.ownsUid(cmd.Uid) {
		return
	}
	profile, ok := e.users[cmd.Uid]
	if !ok {
		return
	}
	if takerSell {
		profile.Accounts[spec.BaseCurrency] += int64(ev.Size) * spec.BaseScaleK
	} else {
		refund := int64(ev.Size)*int64(ev.BidderHoldPrice)*spec.QuoteScaleK + int64(ev.Size)*spec.TakerFee
		profile.Accounts[spec.QuoteCurrency] += refund
	}
}
