package core

// SymbolSpecification is the immutable-after-admission record for one
// tradable instrument. Matching semantics are identical across symbol
// types, and so is the collateral currency (see CollateralCurrency);
// SymbolType only governs the margin-trading eligibility gate
// (SPEC_FULL.md §4.2).
type SymbolSpecification struct {
	SymbolId       SymbolId
	SymbolType     SymbolType
	BaseCurrency   Currency
	QuoteCurrency  Currency
	BaseScaleK     int64
	QuoteScaleK    int64
	TakerFee       int64
	MakerFee       int64
	MarginBuy      int64
	MarginSell     int64
}

// CollateralCurrency returns which currency an order of the given action
// reserves: quote for bids, base for asks, regardless of symbol type.
func (s SymbolSpecification) CollateralCurrency(action OrderAction) Currency {
	if action == Bid {
		return s.QuoteCurrency
	}
	return s.BaseCurrency
}

// MarginAllowance returns the margin allowance relevant to the given side.
func (s SymbolSpecification) MarginAllowance(action OrderAction) int64 {
	if action == Bid {
		return s.MarginBuy
	}
	return s.MarginSell
}
