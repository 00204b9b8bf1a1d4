package pipeline

import "github.com/llc-993/matching-core/internal/core"

// GroupingProcessor assigns every command an events_group id, batching
// consecutive commands into the same group up to a size limit and forcing
// a new group on the commands that must never share a group with what
// came before them (a reset, a persist-state checkpoint, or an explicit
// grouping boundary).
type GroupingProcessor struct {
	groupCounter  uint64
	msgsPerGroup  int
	msgsInCurrent int
}

func NewGroupingProcessor(msgsPerGroup int) *GroupingProcessor {
	return &GroupingProcessor{msgsPerGroup: msgsPerGroup}
}

func (g *GroupingProcessor) Process(cmd *core.OrderCommand) {
	switch cmd.Command {
	case core.Reset, core.PersistStateMatching, core.GroupingControl:
		g.groupCounter++
		g.msgsInCurrent = 0
	}

	cmd.EventsGroup = g.groupCounter
	g.msgsInCurrent++

	if g.msgsInCurrent >= g.msgsPerGroup {
		g.groupCounter++
		g.msgsInCurrent = 0
	}
}
