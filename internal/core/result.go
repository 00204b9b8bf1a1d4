package core

import "fmt"

// ResultCode is the terminal (or intermediate) outcome of a command as it
// moves through the pipeline. The zero value, New, is what a freshly
// submitted command carries before any stage has touched it.
type ResultCode uint8

const (
	New ResultCode = iota
	ValidForMatchingEngine
	Success
	Accepted

	AuthInvalidUser

	RiskNsf
	RiskInvalidReserveBidPrice
	RiskAskPriceLowerThanFee
	RiskMarginTradingDisabled

	MatchingInvalidOrderBookId
	MatchingUnknownOrderId
	MatchingUnsupportedCommand
	MatchingMoveFailedPriceOverRiskLimit
	MatchingReduceFailedWrongSize
	MatchingInvalidOrderSize

	StatePersistRiskEngineFailed
	StatePersistMatchingEngineFailed

	UserMgmtUserAlreadyExists

	InvalidSymbol
	UnsupportedSymbolType
	BinaryCommandFailed
)

var resultCodeNames = [...]string{
	"New",
	"ValidForMatchingEngine",
	"Success",
	"Accepted",
	"AuthInvalidUser",
	"RiskNsf",
	"RiskInvalidReserveBidPrice",
	"RiskAskPriceLowerThanFee",
	"RiskMarginTradingDisabled",
	"MatchingInvalidOrderBookId",
	"MatchingUnknownOrderId",
	"MatchingUnsupportedCommand",
	"MatchingMoveFailedPriceOverRiskLimit",
	"MatchingReduceFailedWrongSize",
	"MatchingInvalidOrderSize",
	"StatePersistRiskEngineFailed",
	"StatePersistMatchingEngineFailed",
	"UserMgmtUserAlreadyExists",
	"InvalidSymbol",
	"UnsupportedSymbolType",
	"BinaryCommandFailed",
}

func (r ResultCode) String() string {
	if int(r) < len(resultCodeNames) {
		return resultCodeNames[r]
	}
	return fmt.Sprintf("ResultCode(%d)", uint8(r))
}

// IsTerminal reports whether a command has reached a final outcome and
// should not be mutated by a later stage (e.g. risk-post never overwrites
// a result code risk-pre already failed).
func (r ResultCode) IsTerminal() bool {
	switch r {
	case New, ValidForMatchingEngine:
		return false
	default:
		return true
	}
}
