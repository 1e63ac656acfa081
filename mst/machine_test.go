package mst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMachineOfIsStableAndInRange(t *testing.T) {
	ctx := WorkerContext{Myself: 0, Machines: 4}
	for _, procID := range []int64{0, 1, 4, 5, 8, 1000003} {
		m := ctx.MachineOf(procID)
		require.GreaterOrEqual(t, m, 0)
		require.Less(t, m, 4)
		require.Equal(t, m, ctx.MachineOf(procID), "MachineOf must be deterministic")
	}
}

func TestMachineOfAgreesAcrossOwnerContexts(t *testing.T) {
	// Every machine computes routing the same way regardless of which
	// machine's WorkerContext does the computing.
	a := WorkerContext{Myself: 0, Machines: 6}
	b := WorkerContext{Myself: 3, Machines: 6}
	for procID := int64(0); procID < 50; procID++ {
		require.Equal(t, a.MachineOf(procID), b.MachineOf(procID))
	}
}

func TestPhaseLabelCoversAllPhases(t *testing.T) {
	for _, p := range []int{PhasePrepare, PhaseFindMOE, PhaseMerge, PhaseReqActive, PhaseSummarize} {
		require.NotEqual(t, "unknown", phaseLabel(p))
	}
	require.Equal(t, "unknown", phaseLabel(99))
}

func TestNodeLookupMissIsNotFound(t *testing.T) {
	m := NewMachine(WorkerContext{Myself: 0, Machines: 1}, nil, NewTransport(1, 1))
	_, ok := m.node(42)
	require.False(t, ok)
}
