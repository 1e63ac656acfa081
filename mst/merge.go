package mst

// handleMergeStep is the phase-2 fanout: visit every node in the fragment
// via the same children-cascade prepare/find_moe use, and at the one node
// whose MOE it actually is, fire off the combine request.
func (m *Machine) handleMergeStep(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok || n.State != StateMerge {
		return nil
	}

	var out Outbox
	if n.MOE.U == n.ProcID && n.MOE.V != n.MOE.U {
		// A degenerate MOE (U == V, an isolated fragment that never found a
		// real outgoing edge) has nothing to combine with; skip the
		// self-addressed req_combine that would otherwise add the node as
		// its own child.
		out = out.To(m.ctx.MachineOf(n.MOE.V), n.MOE.V, Message{Kind: KindReqCombine, Sender: n.ProcID})
	}
	for _, child := range n.Children {
		out = m.cascade(out, child, Message{Kind: KindMergeStep})
	}
	return m.completeOne(out)
}

// handleReqCombine accepts sender as a new child, and — when the three
// reciprocal-MOE conditions all hold — promotes this node to a new
// fragment root by self-delivering new_root.
func (m *Machine) handleReqCombine(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok {
		return nil
	}
	sender := msg.Sender
	n.addChild(sender)

	becomesRoot := n.MOE.U == n.ProcID && n.MOE.V == sender && n.ProcID > sender
	if !becomesRoot {
		return nil
	}
	m.roots[n.ProcID] = struct{}{}
	return Outbox{}.To(m.ctx.MachineOf(n.ProcID), n.ProcID, Message{
		Kind: KindNewRoot, RootID: n.ProcID, ParentID: n.ProcID,
	})
}

// handleNewRoot re-roots the fragment along the path from the promoted
// node outward: the old parent is demoted to a child, the new parent
// (msg.ParentID) is removed from children, and the update fans out to
// whatever children remain, including the freshly demoted old parent.
// This is pure tree surgery — the phase-2 completion signal is
// handleMergeStep's cascade, since it is the one guaranteed to visit every
// owned node exactly once even for a fragment whose MOE never resolves to
// a real promotion (an isolated fragment with no outgoing edges left,
// still carrying its degenerate MOE). new_root's own reach is bounded by
// which nodes an actual merge touches this round, which would leave such
// a fragment's phase counter permanently short if it drove completion
// instead (see DESIGN.md).
func (m *Machine) handleNewRoot(msg Message) Outbox {
	n, ok := m.node(msg.Target)
	if !ok {
		return nil
	}

	wasRoot := n.IsFragmentRoot()
	oldParent := n.Parent
	n.Root = msg.RootID
	if oldParent != n.ProcID && oldParent != msg.ParentID {
		n.addChild(oldParent)
	}
	n.removeChild(msg.ParentID)
	n.Parent = msg.ParentID
	n.State = StateIdle

	if wasRoot && n.ProcID != msg.RootID {
		// This node was the root of its own (now absorbed) fragment; it
		// unroots as the cascade re-parents it under the merged fragment's
		// new root.
		delete(m.roots, n.ProcID)
	}

	var out Outbox
	for _, child := range n.Children {
		out = out.To(m.ctx.MachineOf(child), child, Message{
			Kind: KindNewRoot, RootID: n.Root, ParentID: n.ProcID,
		})
	}
	return out
}
