package pipeline

import (
	"github.com/llc-993/matching-core/internal/core"
	"github.com/llc-993/matching-core/internal/risk"
)

// ResultConsumer receives every command once it has cleared the full
// pipeline (including any stop orders it triggered along the way), in the
// order they were produced.
type ResultConsumer func(cmd *core.OrderCommand)

// Pipeline is grouping -> risk-pre (every shard) -> matching (every
// shard) -> risk-post (every shard) -> result consumer, run in that
// strict order for every command. Shard counts for risk and matching are
// independent: a command's uid picks its risk shard, its symbol picks its
// matching shard, and the two need not line up.
type Pipeline struct {
	grouping    *GroupingProcessor
	riskEngines []*risk.Engine
	routers     []*MatchingRouter
	consumer    ResultConsumer
}

func NewPipeline(riskShards, matchingShards, msgsPerGroup int) *Pipeline {
	p := &Pipeline{grouping: NewGroupingProcessor(msgsPerGroup)}
	for i := 0; i < riskShards; i++ {
		p.riskEngines = append(p.riskEngines, risk.NewEngine(i, riskShards))
	}
	for i := 0; i < matchingShards; i++ {
		p.routers = append(p.routers, NewMatchingRouter(i, matchingShards))
	}
	return p
}

func (p *Pipeline) SetResultConsumer(c ResultConsumer) {
	p.consumer = c
}

func (p *Pipeline) AddSymbol(spec core.SymbolSpecification) {
	for _, e := range p.riskEngines {
		e.AddSymbol(spec)
	}
	for _, r := range p.routers {
		r.AddSymbol(spec)
	}
}

// HandleCommand runs cmd through the full pipeline. Every stop order it
// triggers is assigned an events_group by the same grouping processor and
// then settled through risk-post and handed to the result consumer (see
// settle), recursively for any stops those trigger in turn.
func (p *Pipeline) HandleCommand(cmd *core.OrderCommand) {
	p.grouping.Process(cmd)
	p.runThrough(cmd)
}

func (p *Pipeline) runThrough(cmd *core.OrderCommand) {
	for _, e := range p.riskEngines {
		e.PreProcess(cmd)
	}
	for _, r := range p.routers {
		r.ProcessOrder(cmd)
	}
	p.settle(cmd)
}

// settle runs risk-post against whatever matcher events cmd carries, hands
// it to the result consumer, then recurses into every stop order it
// triggered. A triggered stop's synthetic Place command was already run
// against the book synchronously, inside the trade that crossed it (see
// orderbook.reissueStop), its risk-pre hold was reserved back when the
// stop order was first admitted, and re-dispatching it through
// ProcessOrder would match it a second time. So a triggered command only
// ever reaches settle, never runThrough.
func (p *Pipeline) settle(cmd *core.OrderCommand) {
	for _, e := range p.riskEngines {
		e.PostProcess(cmd)
	}
	if p.consumer != nil {
		p.consumer(cmd)
	}

	for _, r := range p.routers {
		for _, triggered := range r.DrainTriggeredStops() {
			p.grouping.Process(triggered)
			p.settle(triggered)
		}
	}
}

// Router exposes the matching shard at index i, for read-only queries
// (depth snapshots) that do not belong on the hot command path.
func (p *Pipeline) Router(i int) *MatchingRouter {
	return p.routers[i]
}

func (p *Pipeline) Routers() []*MatchingRouter {
	return p.routers
}

// State is the full cross-shard state a snapshot captures: every risk
// shard's user profiles and every matching shard's resting books.
type State struct {
	RiskShards     [][]risk.UserProfileSnapshot
	MatchingShards [][]BookSnapshot
}

// Snapshot walks every shard in index order, so two snapshots taken of an
// identical pipeline state serialize identically.
func (p *Pipeline) Snapshot() State {
	state := State{
		RiskShards:     make([][]risk.UserProfileSnapshot, len(p.riskEngines)),
		MatchingShards: make([][]BookSnapshot, len(p.routers)),
	}
	for i, e := range p.riskEngines {
		state.RiskShards[i] = e.Snapshot()
	}
	for i, r := range p.routers {
		state.MatchingShards[i] = r.Snapshot()
	}
	return state
}

// Restore replaces every shard's state with the given snapshot. Shard
// counts and symbol specifications must already match what produced the
// snapshot: Restore does not re-derive sharding from the data itself.
func (p *Pipeline) Restore(state State) {
	for i, profiles := range state.RiskShards {
		if i < len(p.riskEngines) {
			p.riskEngines[i].Restore(profiles)
		}
	}
	for i, books := range state.MatchingShards {
		if i < len(p.routers) {
			p.routers[i].Restore(books)
		}
	}
}
