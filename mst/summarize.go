package mst

// ClusterLine is one line of Phase 4 output: a single owned node's place
// in the final spanning forest.
type ClusterLine struct {
	Root     int64
	Parent   int64
	Weight   int64
	ProcID   int64
	ProcName string
}

// handleSummarize emits one ClusterLine per node this machine owns. Unlike
// prepare/find_moe/merge, summarize has no fragment structure left to
// respect — the spanning forest is already final — so every machine just
// reports directly on its own owned set.
func (m *Machine) handleSummarize() Outbox {
	for _, n := range m.procs {
		var weight int64
		if !n.IsFragmentRoot() {
			weight = n.Neighbors[n.Parent]
		}
		m.Lines = append(m.Lines, ClusterLine{
			Root:     n.Root,
			Parent:   n.Parent,
			Weight:   weight,
			ProcID:   n.ProcID,
			ProcName: n.ProcName,
		})
	}
	return Outbox{}.Broadcast(m.ctx.Machines, Message{Kind: KindPhaseDone, Phase: PhaseSummarize})
}
