// Package core defines the primitive types and tagged records that cross
// stage boundaries in the matching pipeline: prices, sizes, symbol specs,
// commands and the events the matching engine produces for them.
package core

import "fmt"

// Price and Size are fixed-point integers; no floating point appears
// anywhere on the hot path. UserId and OrderId are unsigned since they are
// never negative; SymbolId and Currency stay signed 32-bit to match the
// wire types the rest of the pipeline exchanges.
type (
	Price    int64
	Size     int64
	UserId   uint64
	OrderId  uint64
	SymbolId int32
	Currency int32
)

// OrderAction is the side of an order.
type OrderAction uint8

const (
	Ask OrderAction = iota
	Bid
)

func (a OrderAction) Opposite() OrderAction {
	if a == Ask {
		return Bid
	}
	return Ask
}

func (a OrderAction) String() string {
	switch a {
	case Ask:
		return "Ask"
	case Bid:
		return "Bid"
	default:
		return fmt.Sprintf("OrderAction(%d)", uint8(a))
	}
}

// OrderType selects the extended order-type semantics place() applies.
type OrderType uint8

const (
	Gtc OrderType = iota
	Ioc
	Fok
	FokBudget
	IocBudget
	PostOnly
	StopLimit
	StopMarket
	Iceberg
	Day
	Gtd
)

func (t OrderType) String() string {
	switch t {
	case Gtc:
		return "Gtc"
	case Ioc:
		return "Ioc"
	case Fok:
		return "Fok"
	case FokBudget:
		return "FokBudget"
	case IocBudget:
		return "IocBudget"
	case PostOnly:
		return "PostOnly"
	case StopLimit:
		return "StopLimit"
	case StopMarket:
		return "StopMarket"
	case Iceberg:
		return "Iceberg"
	case Day:
		return "Day"
	case Gtd:
		return "Gtd"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

// IsBudget reports whether the order's limit is a total notional budget
// rather than a worst unit price (used by the books to route to budget
// matching and by risk-pre for the hold computation).
func (t OrderType) IsBudget() bool {
	return t == FokBudget || t == IocBudget
}

// NeverRests reports whether an unfilled remainder must be rejected instead
// of resting in the book. FokBudget/IocBudget are included here even though
// they are not mentioned in the non-resting guard in the Rust source this
// was distilled from: their names promise IOC/FOK semantics, and resting an
// "immediate or cancel" order would leak an unbalanced reservation. See
// SPEC_FULL.md §4.1 for the full rationale.
func (t OrderType) NeverRests() bool {
	return t == Ioc || t == Fok || t == IocBudget || t == FokBudget
}

// SymbolType affects only whether the risk layer applies the
// margin-trading eligibility gate (IsMarginBearing); the collateral
// currency and matching semantics are identical across all symbol types.
type SymbolType uint8

const (
	Spot SymbolType = iota
	Futures
	PerpetualSwap
	CallOption
	PutOption
)

func (s SymbolType) String() string {
	switch s {
	case Spot:
		return "Spot"
	case Futures:
		return "Futures"
	case PerpetualSwap:
		return "PerpetualSwap"
	case CallOption:
		return "CallOption"
	case PutOption:
		return "PutOption"
	default:
		return fmt.Sprintf("SymbolType(%d)", uint8(s))
	}
}

// IsMarginBearing reports whether the symbol type is subject to the
// margin-trading eligibility gate (RiskMarginTradingDisabled).
func (s SymbolType) IsMarginBearing() bool {
	return s != Spot
}
