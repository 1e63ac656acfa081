package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, mode CommitMode) *Store {
	t.Helper()
	s, err := Open(Config{Mode: mode, DBPath: t.TempDir(), DBPrefix: "turtles", PID: 42})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func queryInt(t *testing.T, s *Store, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().QueryRow(query, args...).Scan(&n))
	return n
}

// TestDurableFilePathIsDeterministic pins the durable file naming scheme.
func TestDurableFilePathIsDeterministic(t *testing.T) {
	cfg := Config{DBPath: "/var/turtles", DBPrefix: "myapp", PID: 777}
	require.Equal(t, filepath.Join("/var/turtles", "myapp-777.db"), cfg.DurableFilePath())
}

func TestOpenRejectsInvalidCommitMode(t *testing.T) {
	_, err := Open(Config{Mode: "bogus", DBPath: t.TempDir(), PID: 1})
	require.Error(t, err)
}

// TestDirectModeSingleCall covers a single settled call recorded directly
// against the durable file, no finalizer involved.
func TestDirectModeSingleCall(t *testing.T) {
	s := openTestStore(t, Direct)
	rec := NewRecorder(s)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.AddProcSync(ctx, 1, "::one", 100))
	require.NoError(t, rec.AddCallSync(ctx, 0, 1, 0, 200, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, 1, 0, 300))

	calls := queryInt(t, s, `SELECT calls FROM main.calls_by_caller_callee WHERE caller_name = '' AND callee_name = '::one'`)
	require.Equal(t, int64(1), calls)
}

// TestStagedModeFinalize checks that a settled call recorded in staged
// mode eventually lands in stage1 and is removed from main.
func TestStagedModeFinalize(t *testing.T) {
	s := openTestStore(t, Staged)
	rec := NewRecorder(s)
	fin := NewFinalizer(rec, Staged, 50*time.Millisecond)
	fin.Start()
	defer func() { fin.Stop(); rec.Close() }()

	ctx := context.Background()
	require.NoError(t, rec.AddProcSync(ctx, 1, "::one", 100))
	require.NoError(t, rec.AddCallSync(ctx, 0, 1, 0, 200, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, 1, 0, 300))

	require.Eventually(t, func() bool {
		calls := queryInt(t, s, `SELECT COUNT(*) FROM stage1.calls_by_caller_callee WHERE caller_name = '' AND callee_name = '::one'`)
		return calls == 1
	}, 2*time.Second, 20*time.Millisecond)

	remaining := queryInt(t, s,
		`SELECT COUNT(*) FROM main.call_pts WHERE caller_id = 0 AND callee_id = 1 AND trace_id = 0`)
	require.Equal(t, int64(0), remaining)
}

// TestNestedTrace checks that a calls b, plus a top-level call to b,
// produce three distinct aggregated edges.
func TestNestedTrace(t *testing.T) {
	s := openTestStore(t, Direct)
	rec := NewRecorder(s)
	defer rec.Close()

	ctx := context.Background()
	const procA, procB int64 = 10, 20
	require.NoError(t, rec.AddProcSync(ctx, procA, "::a", 100))
	require.NoError(t, rec.AddProcSync(ctx, procB, "::b", 100))

	// top-level call to b
	require.NoError(t, rec.AddCallSync(ctx, 0, procB, 1, 200, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, procB, 1, 210))

	// top-level call to a, which calls b
	require.NoError(t, rec.AddCallSync(ctx, 0, procA, 2, 300, nil))
	require.NoError(t, rec.AddCallSync(ctx, procA, procB, 3, 310, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, procA, procB, 3, 320))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, procA, 2, 330))

	require.Equal(t, int64(1), queryInt(t, s, `SELECT calls FROM main.calls_by_caller_callee WHERE caller_name = '' AND callee_name = '::b'`))
	require.Equal(t, int64(1), queryInt(t, s, `SELECT calls FROM main.calls_by_caller_callee WHERE caller_name = '' AND callee_name = '::a'`))
	require.Equal(t, int64(1), queryInt(t, s, `SELECT calls FROM main.calls_by_caller_callee WHERE caller_name = '::a' AND callee_name = '::b'`))
}

// TestRecorderIdempotentAddProc checks that two add_proc calls with
// identical (procId, procName) settle to one row keeping the first
// time_defined.
func TestRecorderIdempotentAddProc(t *testing.T) {
	s := openTestStore(t, Direct)
	rec := NewRecorder(s)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.AddProcSync(ctx, 5, "::dup", 111))
	require.NoError(t, rec.AddProcSync(ctx, 5, "::dup", 999))

	require.Equal(t, int64(1), queryInt(t, s, `SELECT COUNT(*) FROM main.proc_ids WHERE proc_id = 5`))
	require.Equal(t, int64(111), queryInt(t, s, `SELECT time_defined FROM main.proc_ids WHERE proc_id = 5`))
}

// TestUpdateCallOnMissingRowIsNoOp: an update_call for a row that was
// never added must not error and must not create a row.
func TestUpdateCallOnMissingRowIsNoOp(t *testing.T) {
	s := openTestStore(t, Direct)
	rec := NewRecorder(s)
	defer rec.Close()

	require.NoError(t, rec.UpdateCallSync(context.Background(), 1, 2, 3, 100))
	require.Equal(t, int64(0), queryInt(t, s, `SELECT COUNT(*) FROM main.call_pts`))
}

func TestUnusedProcsView(t *testing.T) {
	s := openTestStore(t, Direct)
	rec := NewRecorder(s)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.AddProcSync(ctx, 1, "::called", 100))
	require.NoError(t, rec.AddProcSync(ctx, 2, "::orphan", 100))
	require.NoError(t, rec.AddCallSync(ctx, 0, 1, 0, 200, nil))
	require.NoError(t, rec.UpdateCallSync(ctx, 0, 1, 0, 210))

	require.Equal(t, int64(1), queryInt(t, s, `SELECT COUNT(*) FROM main.unused_procs WHERE proc_name = '::orphan'`))
	require.Equal(t, int64(0), queryInt(t, s, `SELECT COUNT(*) FROM main.unused_procs WHERE proc_name = '::called'`))
}

func TestFinalizeIdempotence(t *testing.T) {
	s := openTestStore(t, Staged)

	require.NoError(t, insertSettledCall(s, 0, 1, 0, 100, 200))
	moved1, err := finalizeTick(s.DB(), nowMicros())
	require.NoError(t, err)
	require.Equal(t, int64(1), moved1)

	moved2, err := finalizeTick(s.DB(), nowMicros())
	require.NoError(t, err)
	require.Equal(t, int64(0), moved2)
}

func insertSettledCall(s *Store, callerID, calleeID, traceID, timeEnter, timeLeave int64) error {
	if calleeID != 0 {
		if _, err := s.DB().Exec(`INSERT OR IGNORE INTO main.proc_ids(proc_id, proc_name, time_defined) VALUES (?, ?, ?)`,
			calleeID, "::synthetic", timeEnter); err != nil {
			return err
		}
	}
	_, err := s.DB().Exec(
		`INSERT INTO main.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave) VALUES (?, ?, ?, ?, ?)`,
		callerID, calleeID, traceID, timeEnter, timeLeave)
	return err
}
