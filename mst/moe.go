package mst

// handlePrepare implements Phase 0 for one node: sort its OuterEdges by
// descending weight, then fan the command out to children (empty for every
// node the first time this runs, since fragments are still singletons).
func (m *Machine) handlePrepare(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok {
		return nil
	}
	n.Prepare()

	var out Outbox
	for _, child := range n.Children {
		out = m.cascade(out, child, Message{Kind: KindPrepare})
	}
	return m.completeOne(out)
}

// handleFindMOE is the down-phase of the search: a node in IDLE resets its
// MOE to the degenerate value, begins waiting for its own local test plus
// every child's convergecast, then either starts its own test (leaf) or
// forwards the search down.
func (m *Machine) handleFindMOE(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateIdle {
		return nil
	}
	n.State = StateWaitMOE
	n.Awaiting = len(n.Children) + 1
	n.MOE = DegenerateMOE(n.ProcID)

	var out Outbox
	if len(n.Children) == 0 {
		out = out.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{Kind: KindTestMOE})
	} else {
		for _, child := range n.Children {
			out = out.To(m.ctx.MachineOf(child), child, Message{Kind: KindFindMOE})
		}
	}
	return out
}

// handleTestMOE implements the local test: either report the current MOE
// as this node's own local-test result if no candidates remain (a
// self-delivered found_moe, which convergecasts to the parent once every
// child has reported too), or probe the heaviest remaining candidate's
// fragment membership.
func (m *Machine) handleTestMOE(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateWaitMOE {
		return nil
	}

	var out Outbox
	if len(n.OuterEdges) == 0 {
		out = out.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{
			Kind: KindFoundMOE, Sender: n.ProcID, MOE: n.MOE,
		})
		return out
	}

	candidate := n.OuterEdges[0]
	out = out.To(m.ctx.MachineOf(candidate), candidate, Message{
		Kind: KindReqRoot, Sender: n.ProcID,
	})
	return out
}

// handleReqRoot answers a root query: reply with this node's own fragment
// root so the asker can tell whether the candidate edge is internal.
func (m *Machine) handleReqRoot(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok {
		return nil
	}
	asker := msg.Sender
	return Outbox{}.To(m.ctx.MachineOf(asker), asker, Message{
		Kind: KindRspRoot, Sender: n.ProcID, RootID: n.Root,
	})
}

// handleRspRoot resolves the asker's probe: an internal candidate is
// retired into InnerEdges and the test resumes; an external one becomes a
// self-delivered found_moe so the weight comparison lives in one place.
func (m *Machine) handleRspRoot(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateWaitMOE || len(n.OuterEdges) == 0 {
		return nil
	}

	candidate := n.OuterEdges[0]
	if msg.RootID == n.Root {
		n.OuterEdges = n.OuterEdges[1:]
		n.InnerEdges = append(n.InnerEdges, candidate)
		return Outbox{}.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{Kind: KindTestMOE})
	}

	weight := n.Neighbors[candidate]
	return Outbox{}.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{
		Kind: KindFoundMOE, Sender: n.ProcID,
		MOE: Edge{U: n.ProcID, V: candidate, W: weight},
	})
}

// handleFoundMOE is the convergecast step: fold in a candidate MOE, and
// once every child (plus this node's own local test) has reported, either
// downcast the winner (fragment root) or convergecast further up.
func (m *Machine) handleFoundMOE(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateWaitMOE {
		return nil
	}
	n.Awaiting--

	if msg.MOE.U != msg.MOE.V && msg.MOE.W > n.MOE.W {
		n.MOE = msg.MOE
	}

	var out Outbox
	switch {
	case n.Awaiting == 1:
		out = out.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{Kind: KindTestMOE})
	case n.Awaiting == 0:
		n.State = StateDoneMOE
		if n.IsFragmentRoot() {
			out = m.downcastNotifyMOE(out, n)
		} else {
			out = out.To(m.ctx.MachineOf(n.Parent), n.Parent, Message{
				Kind: KindFoundMOE, Sender: n.ProcID, MOE: n.MOE,
			})
		}
	}
	return out
}

// downcastNotifyMOE fans the winning MOE out from a fragment root to every
// node in the fragment, transitioning each into MERGE.
func (m *Machine) downcastNotifyMOE(out Outbox, n *Node) Outbox {
	out = m.applyNotifyMOE(out, n, n.MOE)
	return out
}

// handleNotifyMOE implements the downcast for a non-root recipient: adopt
// the winning MOE, transition to MERGE, count down this machine's phase
// quota, and keep fanning to children.
func (m *Machine) handleNotifyMOE(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateDoneMOE {
		return nil
	}
	return m.applyNotifyMOE(nil, n, msg.MOE)
}

func (m *Machine) applyNotifyMOE(out Outbox, n *Node, moe Edge) Outbox {
	n.Root = moe.U
	n.MOE = moe
	n.State = StateMerge

	out = m.completeOne(out)
	for _, child := range n.Children {
		out = out.To(m.ctx.MachineOf(child), child, Message{Kind: KindNotifyMOE, MOE: moe})
	}
	return out
}
