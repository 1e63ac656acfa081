package mst

// Phase numbers for the five-stage GHS round.
const (
	PhasePrepare   = 0
	PhaseFindMOE   = 1
	PhaseMerge     = 2
	PhaseReqActive = 3
	PhaseSummarize = 4
)

// handlePhaseInit starts phase p on this machine: reset the local
// procsInPhase/machinesInPhase counters, then kick off this phase's work.
//
// Prepare, find_moe and merge are fragment-scoped: this machine issues the
// phase's root command only to the roots it owns, and that command
// cascades down each fragment's spanning tree via Children (exactly as
// find_moe forwards itself down the tree). req_active and summarize are
// machine-scoped queries with no fragment structure to walk, so every
// machine — root owner or not — runs them directly against its own owned
// nodes.
func (m *Machine) handlePhaseInit(msg Message) Outbox {
	p := msg.Phase
	m.transitionPhase(p)
	m.procsInPhase = len(m.procs)
	m.machinesInPhase = m.ctx.Machines

	var out Outbox
	switch p {
	case PhasePrepare:
		for root := range m.roots {
			out = m.cascade(out, root, Message{Kind: KindPrepare})
		}
	case PhaseFindMOE:
		// Every node this machine owns returns to IDLE at the top of the
		// round: a node absorbed last round without completing a
		// reciprocal merge (an isolated fragment, or one joined via a
		// one-directional MOE) would otherwise be stuck in MERGE and
		// never rejoin the search.
		for _, n := range m.procs {
			n.State = StateIdle
		}
		for root := range m.roots {
			out = out.To(m.ctx.MachineOf(root), root, Message{Kind: KindFindMOE})
		}
	case PhaseMerge:
		for root := range m.roots {
			out = m.cascade(out, root, Message{Kind: KindMergeStep})
		}
	case PhaseReqActive:
		out = m.handleReqActive(Message{Kind: KindReqActive, Sender: int64(m.ctx.Myself)})
	case PhaseSummarize:
		out = m.handleSummarize()
	}

	if len(m.procs) == 0 && p != PhaseReqActive && p != PhaseSummarize {
		// This machine owns no nodes at all, so nothing will ever reach
		// completeOne for it this phase — a machine that owns any node,
		// root or not, is reached by the cascade and completes through
		// completeOne instead, exactly once.
		out = out.Broadcast(m.ctx.Machines, Message{Kind: KindPhaseDone, Phase: p})
	}
	return out
}

// cascade delivers msg to procID (locally, if owned; over the transport
// otherwise) as the start of a prepare/merge fanout, then relies on that
// message's own handler to keep forwarding to children and decrementing
// procsInPhase — mirroring how find_moe forwards itself down the tree.
func (m *Machine) cascade(out Outbox, procID int64, msg Message) Outbox {
	return out.To(m.ctx.MachineOf(procID), procID, msg)
}

// handlePhaseDone processes one of the K phase_done broadcasts for the
// current phase. When this machine has now seen all K, it locally advances
// to the next phase — every machine does this independently and reaches
// the identical decision, since every machine sees the identical sequence
// of K phase_done arrivals.
func (m *Machine) handlePhaseDone(msg Message) Outbox {
	if msg.Phase != m.phase {
		// Stale phase_done from a phase we've already left; skip.
		return nil
	}
	m.machinesInPhase--
	if m.machinesInPhase > 0 {
		return nil
	}

	next := m.nextPhase()
	if next == -1 {
		return Outbox{}.Broadcast(m.ctx.Machines, Message{Kind: KindBye})
	}
	return Outbox{}.ToMachine(m.ctx.Myself, Message{Kind: KindPhaseInit, Phase: next, Target: int64(m.ctx.Myself)})
}

// nextPhase implements the phase-advance table; -1 means "no next phase,
// broadcast bye".
func (m *Machine) nextPhase() int {
	switch m.phase {
	case PhasePrepare:
		return PhaseFindMOE
	case PhaseFindMOE:
		return PhaseMerge
	case PhaseMerge:
		return PhaseReqActive
	case PhaseReqActive:
		if m.procsActive > 0 {
			m.procsActive = 0
			return PhaseFindMOE
		}
		return PhaseSummarize
	case PhaseSummarize:
		return -1
	default:
		return -1
	}
}

// completeOne decrements this machine's remaining node count for the
// current phase; at zero, this machine's contribution is done and it
// broadcasts phase_done.
func (m *Machine) completeOne(out Outbox) Outbox {
	m.procsInPhase--
	if m.procsInPhase == 0 {
		out = out.Broadcast(m.ctx.Machines, Message{Kind: KindPhaseDone, Phase: m.phase})
	}
	return out
}
