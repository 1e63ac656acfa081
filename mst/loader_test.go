package mst

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightaware/turtles/store"
)

func openLoaderFixture(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Mode: store.Direct, DBPath: t.TempDir(), DBPrefix: "turtles", PID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

// seedCall records a fully settled call from caller to callee, defining
// callee if it isn't already known.
func seedCall(t *testing.T, rec *store.Recorder, caller, callee, traceID, enter, leave int64) {
	t.Helper()
	ctx := context.Background()
	if callee != 0 {
		require.NoError(t, rec.AddProcSync(ctx, callee, procName(callee), enter))
	}
	require.NoError(t, rec.AddCallSync(ctx, caller, callee, traceID, enter, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, caller, callee, traceID, leave))
}

func procName(id int64) string {
	switch id {
	case 1:
		return "::a"
	case 2:
		return "::b"
	case 3:
		return "::c"
	default:
		return "::unknown"
	}
}

func nodeByID(nodes []*Node, id int64) *Node {
	for _, n := range nodes {
		if n.ProcID == id {
			return n
		}
	}
	return nil
}

// TestLoadGraphAggregatesUndirectedWeight checks that a's calling b three
// times and b calling a once produce one edge whose weight depends on
// --undirected: dominant direction by default, summed when set.
func TestLoadGraphAggregatesUndirectedWeight(t *testing.T) {
	s := openLoaderFixture(t)
	rec := store.NewRecorder(s)
	defer rec.Close()

	seedCall(t, rec, 0, 1, 1, 100, 110) // top-level call into a, no graph edge
	seedCall(t, rec, 1, 2, 2, 200, 210)
	seedCall(t, rec, 1, 2, 3, 220, 230)
	seedCall(t, rec, 1, 2, 4, 240, 250)
	seedCall(t, rec, 2, 1, 5, 260, 270)

	dominant, err := LoadGraph(s.DB(), 0, false)
	require.NoError(t, err)
	a := nodeByID(dominant, 1)
	require.NotNil(t, a)
	require.Equal(t, int64(3), a.Neighbors[2])

	summed, err := LoadGraph(s.DB(), 0, true)
	require.NoError(t, err)
	aSummed := nodeByID(summed, 1)
	require.Equal(t, int64(4), aSummed.Neighbors[2])
}

func TestLoadGraphAppliesCutoff(t *testing.T) {
	s := openLoaderFixture(t)
	rec := store.NewRecorder(s)
	defer rec.Close()

	seedCall(t, rec, 1, 2, 1, 100, 110)
	seedCall(t, rec, 2, 1, 2, 120, 130)

	nodes, err := LoadGraph(s.DB(), 5, true)
	require.NoError(t, err)
	a := nodeByID(nodes, 1)
	require.NotNil(t, a, "proc survives as a singleton fragment even with no surviving edges")
	require.Empty(t, a.Neighbors)
}

func TestLoadGraphExcludesSelfCallsAndTopLevelCalls(t *testing.T) {
	s := openLoaderFixture(t)
	rec := store.NewRecorder(s)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.AddProcSync(ctx, 1, "::a", 100))
	// self-call
	require.NoError(t, rec.AddCallSync(ctx, 1, 1, 1, 200, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 1, 1, 1, 210))
	// top-level call
	require.NoError(t, rec.AddCallSync(ctx, 0, 1, 2, 220, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, 1, 2, 230))

	nodes, err := LoadGraph(s.DB(), 0, true)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Empty(t, nodes[0].Neighbors)
}

func TestLoadGraphSingletonForUncalledProc(t *testing.T) {
	s := openLoaderFixture(t)
	rec := store.NewRecorder(s)
	defer rec.Close()

	require.NoError(t, rec.AddProcSync(context.Background(), 9, "::lonely", 100))

	nodes, err := LoadGraph(s.DB(), 0, true)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "::lonely", nodes[0].ProcName)
	require.True(t, nodes[0].IsFragmentRoot())
}
