package mst

// handleReqActive answers the termination check: report how many of this
// machine's own owned nodes still have unexplored outer edges, to every
// machine (since every machine needs the global total to decide whether
// the next phase is another find_moe round or summarize).
func (m *Machine) handleReqActive(msg Message) Outbox {
	count := 0
	for _, n := range m.procs {
		if len(n.OuterEdges) > 0 {
			count++
		}
	}
	return Outbox{}.Broadcast(m.ctx.Machines, Message{Kind: KindRspActive, Sender: msg.Sender, Count: count})
}

// handleRspActive accumulates one machine's contribution to the global
// active-node count; once all K have reported, this machine advances
// itself past Phase 3 exactly as handlePhaseDone would: another find_moe
// round if any node is still active, otherwise summarize.
func (m *Machine) handleRspActive(msg Message) Outbox {
	if m.phase != PhaseReqActive {
		return nil
	}
	m.procsActive += msg.Count
	m.machinesInPhase--
	if m.machinesInPhase > 0 {
		return nil
	}

	next := m.nextPhase()
	if next == -1 {
		return Outbox{}.Broadcast(m.ctx.Machines, Message{Kind: KindBye})
	}
	return Outbox{}.ToMachine(m.ctx.Myself, Message{Kind: KindPhaseInit, Phase: next})
}
