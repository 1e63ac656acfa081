package mst

import (
	"github.com/sirupsen/logrus"

	"github.com/flightaware/turtles/metrics"
)

// WorkerContext is the value each machine's event loop owns and lends to
// its handlers, in place of module-wide myself/machines/roster globals.
type WorkerContext struct {
	Myself   int
	Machines int
}

// MachineOf computes the owner of procID: machineOf(procId) = procId mod K.
// This is a weak routing hash, skewed under adversarial procId
// distributions, but load balancing, not correctness, is what would
// suffer; every handler in this package treats ownership as authoritative
// regardless of how it was computed.
func (w WorkerContext) MachineOf(procID int64) int {
	m := int(procID % int64(w.Machines))
	if m < 0 {
		m += w.Machines
	}
	return m
}

// Machine is one of the K cooperative, single-threaded workers: a single
// event loop over an inbox channel, processing one message at a time to
// completion, owning a disjoint slice of the procedure graph.
type Machine struct {
	ctx   WorkerContext
	procs map[int64]*Node

	// roots holds the owned procIds that currently head their own fragment.
	// Seeded from every owned node in NewMachine (each starts as its own
	// singleton fragment), then kept live as merges happen: handleReqCombine
	// adds a newly-promoted root, handleNewRoot removes one being absorbed.
	roots map[int64]struct{}

	phase           int
	machinesInPhase int
	procsInPhase    int
	procsActive     int

	inbox     chan Message
	transport *Transport
	log       *logrus.Entry

	bye  bool
	done chan struct{}

	// Lines accumulates this machine's Phase 4 report. Safe to read once
	// Done() has closed; written only from within Run's own goroutine.
	Lines []ClusterLine
}

// NewMachine constructs a machine that will own the given nodes (already
// filtered to this machine by the caller via ctx.MachineOf).
func NewMachine(ctx WorkerContext, owned []*Node, transport *Transport) *Machine {
	procs := make(map[int64]*Node, len(owned))
	roots := make(map[int64]struct{})
	for _, n := range owned {
		procs[n.ProcID] = n
		if n.IsFragmentRoot() {
			roots[n.ProcID] = struct{}{}
		}
	}
	return &Machine{
		ctx:       ctx,
		procs:     procs,
		roots:     roots,
		inbox:     transport.inboxFor(ctx.Myself),
		transport: transport,
		log:       logrus.WithField("machine", ctx.Myself),
		done:      make(chan struct{}),
	}
}

// Run is the machine's event loop: receive one message, dispatch it,
// deliver the resulting Outbox, repeat until bye. Suspension only ever
// happens at the top of this loop, between handlers.
func (m *Machine) Run() {
	defer close(m.done)
	for msg := range m.inbox {
		out := m.dispatch(msg)
		m.deliver(out)
		if m.bye {
			return
		}
	}
}

// Done returns a channel closed once this machine has processed bye and
// exited its loop.
func (m *Machine) Done() <-chan struct{} { return m.done }

func (m *Machine) deliver(out Outbox) {
	for _, d := range out {
		m.transport.Send(d.Machine, d.Msg)
	}
}

func (m *Machine) dispatch(msg Message) Outbox {
	switch msg.Kind {
	case KindPhaseInit:
		return m.handlePhaseInit(msg)
	case KindPhaseDone:
		return m.handlePhaseDone(msg)
	case KindPrepare:
		return m.handlePrepare(msg)
	case KindMergeStep:
		return m.handleMergeStep(msg)
	case KindFindMOE:
		return m.handleFindMOE(msg)
	case KindTestMOE:
		return m.handleTestMOE(msg)
	case KindReqRoot:
		return m.handleReqRoot(msg)
	case KindRspRoot:
		return m.handleRspRoot(msg)
	case KindFoundMOE:
		return m.handleFoundMOE(msg)
	case KindNotifyMOE:
		return m.handleNotifyMOE(msg)
	case KindReqCombine:
		return m.handleReqCombine(msg)
	case KindNewRoot:
		return m.handleNewRoot(msg)
	case KindReqActive:
		return m.handleReqActive(msg)
	case KindRspActive:
		return m.handleRspActive(msg)
	case KindBye:
		m.bye = true
		return nil
	default:
		// Invalid/unknown message: logged, worker continues.
		m.log.WithField("kind", msg.Kind).Error("unrecognized message kind")
		return nil
	}
}

// node looks up a procId this machine owns. A miss is always a stray or
// stale message — missing fields are treated as not applicable rather than
// an error; callers skip silently rather than panic.
func (m *Machine) node(procID int64) (*Node, bool) {
	n, ok := m.procs[procID]
	return n, ok
}

func (m *Machine) transitionPhase(next int) {
	metrics.MSTPhaseTransitionsTotal.WithLabelValues(phaseLabel(next)).Inc()
	m.phase = next
}

// phaseLabel names the five GHS phases for metrics.
func phaseLabel(phase int) string {
	switch phase {
	case 0:
		return "prepare"
	case 1:
		return "find_moe"
	case 2:
		return "merge"
	case 3:
		return "req_active"
	case 4:
		return "summarize"
	default:
		return "unknown"
	}
}
