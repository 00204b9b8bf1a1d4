package core

// CommandType tags the kind of trading command flowing through the
// pipeline. The full set matches SPEC_FULL.md §6; the core only gives
// concrete handling to a subset (PlaceOrder, MoveOrder, CancelOrder,
// ReduceOrder, AddUser, BalanceAdjustment, SuspendUser, ResumeUser,
// Reset, GroupingControl, PersistStateMatching); the rest are accepted and
// either passed through untouched or rejected with
// MatchingUnsupportedCommand.
type CommandType uint8

const (
	PlaceOrder CommandType = iota
	MoveOrder
	CancelOrder
	ReduceOrder
	OrderBookRequest
	AddUser
	BalanceAdjustment
	SuspendUser
	ResumeUser
	BinaryDataCommand
	BinaryDataQuery
	Reset
	Nop
	PersistStateMatching
	PersistStateRisk
	GroupingControl
	ShutdownSignal
)

var commandTypeNames = [...]string{
	"PlaceOrder", "MoveOrder", "CancelOrder", "ReduceOrder",
	"OrderBookRequest", "AddUser", "BalanceAdjustment", "SuspendUser",
	"ResumeUser", "BinaryDataCommand", "BinaryDataQuery", "Reset", "Nop",
	"PersistStateMatching", "PersistStateRisk", "GroupingControl",
	"ShutdownSignal",
}

func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "CommandType(?)"
}

// EventType tags what happened to an order during matching.
type EventType uint8

const (
	Trade EventType = iota
	Reject
	Reduce
)

func (e EventType) String() string {
	switch e {
	case Trade:
		return "Trade"
	case Reject:
		return "Reject"
	case Reduce:
		return "Reduce"
	default:
		return "EventType(?)"
	}
}

// MatcherEvent is a single trade/reject/reduce produced while processing
// one command. BidderHoldPrice is the reserve price the bid side of the
// event committed funds against at admission; it is what risk-post uses to
// refund the bid's price-improvement (or the bid's entire hold, on a
// reject/reduce) back to whichever side paid it.
type MatcherEvent struct {
	EventType       EventType
	Size            Size
	Price           Price
	MatchedOrderId  OrderId
	MatchedOrderUid UserId
	BidderHoldPrice Price
}

func NewTradeEvent(size Size, price Price, matchedOrderId OrderId, matchedOrderUid UserId, bidderHoldPrice Price) MatcherEvent {
	return MatcherEvent{
		EventType:       Trade,
		Size:            size,
		Price:           price,
		MatchedOrderId:  matchedOrderId,
		MatchedOrderUid: matchedOrderUid,
		BidderHoldPrice: bidderHoldPrice,
	}
}

// NewRejectEvent builds a Reject event for an unfilled size that will
// never trade: bidderHoldPrice must be the ReservePrice that was actually
// used to compute the hold being unwound, so risk-post can reconstruct it
// exactly (SPEC_FULL.md §4.1, "Reject/Reduce refund price"). That is the
// resting order's own ReservePrice when the reject concerns a resting
// order (cancel), the incoming command's own ReservePrice when it
// concerns an incoming order's own unfilled remainder (Ioc/Fok/PostOnly
// rejection), and the command's Price for a budget order, whose hold is
// computed from Price.
func NewRejectEvent(size Size, price Price, bidderHoldPrice Price) MatcherEvent {
	return MatcherEvent{EventType: Reject, Size: size, Price: price, BidderHoldPrice: bidderHoldPrice}
}

func NewReduceEvent(size Size, price Price, bidderHoldPrice Price) MatcherEvent {
	return MatcherEvent{EventType: Reduce, Size: size, Price: price, BidderHoldPrice: bidderHoldPrice}
}

// OrderCommand is the tagged envelope that crosses every stage boundary:
// grouping, risk-pre, matching, risk-post, result publish. MatcherEvents
// is empty on input and is filled in by matching.
type OrderCommand struct {
	Command    CommandType
	ResultCode ResultCode

	Uid          UserId
	OrderId      OrderId
	Symbol       SymbolId
	Price        Price
	ReservePrice Price
	Size         Size
	Action       OrderAction
	OrderType    OrderType

	Timestamp    int64
	EventsGroup  uint64
	ServiceFlags int32

	StopPrice    *Price
	VisibleSize  *Size
	ExpireTime   *int64

	MatcherEvents []MatcherEvent
}

// NewCommand returns a command ready for submission, with
// MatcherEvents pre-allocated the way the original kept a small
// pre-reserved capacity to avoid reallocating on the hot path.
func NewCommand(cmdType CommandType) *OrderCommand {
	return &OrderCommand{
		Command:       cmdType,
		ResultCode:    New,
		OrderType:     Gtc,
		MatcherEvents: make([]MatcherEvent, 0, 4),
	}
}

// Clone deep-copies a command including its matcher events and optional
// pointer fields, so a pipeline stage can hand off a command without
// aliasing mutable state with the caller (mirrors how each Disruptor
// handler in the original cloned the ring-buffer slot before mutating it).
func (c *OrderCommand) Clone() *OrderCommand {
	clone := *c
	if c.StopPrice != nil {
		v := *c.StopPrice
		clone.StopPrice = &v
	}
	if c.VisibleSize != nil {
		v := *c.VisibleSize
		clone.VisibleSize = &v
	}
	if c.ExpireTime != nil {
		v := *c.ExpireTime
		clone.ExpireTime = &v
	}
	clone.MatcherEvents = append([]MatcherEvent(nil), c.MatcherEvents...)
	return &clone
}
