package mst

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRunClustersConnectedComponentTogether builds a 4-node connected graph
// (a path a-b-c-d, plus a chord b-d) and one disconnected singleton e, runs
// the full GHS round across 3 simulated machines, and checks that every
// node in the connected component ends up sharing one Root while the
// singleton keeps its own.
func TestRunClustersConnectedComponentTogether(t *testing.T) {
	a := NewNode(1, "a", map[int64]int64{2: 4})
	b := NewNode(2, "b", map[int64]int64{1: 4, 3: 2, 4: 7})
	c := NewNode(3, "c", map[int64]int64{2: 2, 4: 1})
	d := NewNode(4, "d", map[int64]int64{2: 7, 3: 1})
	e := NewNode(5, "e", map[int64]int64{})
	nodes := []*Node{a, b, c, d, e}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := Run(ctx, nodes, 3)
	require.NoError(t, err)
	require.Len(t, report, len(nodes))

	byID := make(map[int64]ClusterLine, len(report))
	for _, line := range report {
		byID[line.ProcID] = line
	}

	connectedRoot := byID[1].Root
	for _, id := range []int64{2, 3, 4} {
		require.Equal(t, connectedRoot, byID[id].Root,
			"proc %d should share a root with the rest of its connected component", id)
	}
	require.NotEqual(t, connectedRoot, byID[5].Root,
		"the disconnected singleton must not merge into the other component")

	require.Equal(t, int64(5), byID[5].Root)
	require.Equal(t, int64(5), byID[5].Parent)
	require.Zero(t, byID[5].Weight)
}

// TestRunSingleNodeGraph is the degenerate case: one machine, one node, no
// edges — the round must still terminate and report the node as its own
// singleton cluster.
func TestRunSingleNodeGraph(t *testing.T) {
	only := NewNode(1, "solo", map[int64]int64{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	report, err := Run(ctx, []*Node{only}, 1)
	require.NoError(t, err)
	require.Len(t, report, 1)
	require.Equal(t, int64(1), report[0].Root)
	require.Equal(t, int64(1), report[0].ProcID)
}

// TestRunToleratesIdleMachines documents that Run
// trusts its caller (cmd/turtles-cluster clamps k to len(nodes) itself) —
// an idle machine with no owned nodes simply completes its share of every
// phase immediately.
func TestRunToleratesIdleMachines(t *testing.T) {
	x := NewNode(1, "x", map[int64]int64{2: 3})
	y := NewNode(2, "y", map[int64]int64{1: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := Run(ctx, []*Node{x, y}, 5)
	require.NoError(t, err)
	require.Len(t, report, 2)
	require.Equal(t, report[0].Root, report[1].Root)
}
