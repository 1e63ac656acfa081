// Package mst implements TURTLES' distributed Minimum Spanning Tree engine:
// a k-machine, in-process simulation of Gallager-Humblet-Spira that
// partitions the caller/callee graph into connected components (bales) by
// iteratively merging fragments along their Maximum Outgoing Edge.
//
// "Distributed" here means partitioned and message-driven, not networked:
// the K machines are goroutines exchanging Go values over channels rather
// than processes exchanging bytes over sockets.
package mst

import "fmt"

// Kind enumerates the message kinds the GHS phases exchange: the thirteen
// named kinds of the wire protocol, plus KindPrepare and KindMergeStep, the
// phase-0/phase-2 analogues of find_moe's root-to-children cascade, which
// otherwise has no distinct message name of its own.
type Kind int

const (
	KindPhaseInit Kind = iota
	KindPhaseDone
	KindPrepare
	KindFindMOE
	KindTestMOE
	KindReqRoot
	KindRspRoot
	KindFoundMOE
	KindNotifyMOE
	KindMergeStep
	KindReqCombine
	KindNewRoot
	KindReqActive
	KindRspActive
	KindBye
)

func (k Kind) String() string {
	switch k {
	case KindPhaseInit:
		return "phase_init"
	case KindPhaseDone:
		return "phase_done"
	case KindPrepare:
		return "prepare"
	case KindMergeStep:
		return "merge"
	case KindFindMOE:
		return "find_moe"
	case KindTestMOE:
		return "test_moe"
	case KindReqRoot:
		return "req_root"
	case KindRspRoot:
		return "rsp_root"
	case KindFoundMOE:
		return "found_moe"
	case KindNotifyMOE:
		return "notify_moe"
	case KindReqCombine:
		return "req_combine"
	case KindNewRoot:
		return "new_root"
	case KindReqActive:
		return "req_active"
	case KindRspActive:
		return "rsp_active"
	case KindBye:
		return "bye"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Edge is a candidate outgoing edge, (u, v, w): u is the fragment-internal
// endpoint, v the external one, w the edge weight. The degenerate value
// (procId, procId, 0) is a node's initial MOE — see DegenerateMOE.
type Edge struct {
	U, V int64
	W    int64
}

// DegenerateMOE returns the initial "no candidate yet" MOE for a node: any
// real outgoing edge dominates it because a real edge always has U != V.
func DegenerateMOE(procID int64) Edge {
	return Edge{U: procID, V: procID, W: 0}
}

// Message is one unit of work delivered to a machine's event loop. Sender
// and Target are procIds except for the phase-barrier and termination
// kinds, which address a whole machine: the Delivery's machine index picks
// the receiver, and the payload is carried in Phase/Count.
type Message struct {
	Kind Kind

	// Target is who the message is addressed to: a procId for node-level
	// kinds. Machine-addressed kinds (phase_init/phase_done/req_active/
	// rsp_active/bye) do not read it.
	Target int64

	// Sender is the originating procId, where applicable (0 / unused for
	// pure barrier messages).
	Sender int64

	// Phase carries the phase number for phase_init/phase_done.
	Phase int

	// MOE carries the edge payload for found_moe/notify_moe.
	MOE Edge

	// Count carries the active-node tally for rsp_active.
	Count int

	// RootID carries rsp_root's responderRoot, or new_root's newRoot.
	RootID int64

	// ParentID carries new_root's newParent.
	ParentID int64
}
