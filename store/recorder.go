package store

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/flightaware/turtles/metrics"
)

// Recorder is TURTLES' single-writer actor: every mutating operation against
// the store — add_proc, add_call, update_call, and the Finalizer's tick — is
// funneled through one goroutine and applied in the order it was enqueued.
// Trace-hook callers may run on arbitrary host threads; the Recorder is the
// only thing that ever touches *sql.DB for writes.
type Recorder struct {
	store *Store
	reqs  chan request
	done  chan struct{}
	log   *logrus.Entry
}

type request struct {
	op   string
	fn   func(*sql.DB) error
	done chan<- error // nil for fire-and-forget submissions
}

// requestQueueDepth bounds how far a burst of trace events can outrun the
// single writer before submit/submitSync start applying backpressure. It is generous
// rather than tight: an individual lost record must never kill the
// recorder, and blocking a trace-hook caller occasionally is the lesser
// evil.
const requestQueueDepth = 4096

// NewRecorder starts the recorder actor's goroutine against store.
func NewRecorder(s *Store) *Recorder {
	r := &Recorder{
		store: s,
		reqs:  make(chan request, requestQueueDepth),
		done:  make(chan struct{}),
		log:   logrus.WithField("component", "recorder"),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for req := range r.reqs {
		metrics.RecorderQueueDepth.Set(float64(len(r.reqs)))

		err := req.fn(r.store.DB())

		status := metrics.Ok
		if err != nil {
			status = metrics.Fail
			r.log.WithFields(logrus.Fields{"op": req.op, "err": err}).
				Error("store write failed; record may be lost")
		}
		metrics.RecorderWritesTotal.WithLabelValues(req.op, status).Inc()

		if req.done != nil {
			req.done <- err
		}
	}
}

// submit enqueues fn for fire-and-forget execution on the recorder actor.
func (r *Recorder) submit(op string, fn func(*sql.DB) error) {
	r.reqs <- request{op: op, fn: fn}
}

// submitSync enqueues fn and blocks until it has run, returning its error,
// for callers that need the optional completion signal rather than
// fire-and-forget.
func (r *Recorder) submitSync(ctx context.Context, op string, fn func(*sql.DB) error) error {
	ack := make(chan error, 1)
	select {
	case r.reqs <- request{op: op, fn: fn, done: ack}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and blocks until the actor drains whatever
// is already queued. Callers must not submit after calling Close.
func (r *Recorder) Close() {
	close(r.reqs)
	<-r.done
}

// AddProc inserts a ProcRecord, fire-and-forget. Conflict on either the
// proc_id or proc_name unique constraint is silently ignored: two AddProc
// calls with the same (procId, procName) settle on whichever arrived
// first.
func (r *Recorder) AddProc(procID int64, procName string, timeDefined int64) {
	r.submit("add_proc", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT OR IGNORE INTO main.proc_ids(proc_id, proc_name, time_defined) VALUES (?, ?, ?)`,
			procID, procName, timeDefined)
		return err
	})
}

// AddProcSync is AddProc, blocking until the write has been applied.
func (r *Recorder) AddProcSync(ctx context.Context, procID int64, procName string, timeDefined int64) error {
	return r.submitSync(ctx, "add_proc", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT OR IGNORE INTO main.proc_ids(proc_id, proc_name, time_defined) VALUES (?, ?, ?)`,
			procID, procName, timeDefined)
		return err
	})
}

// AddCall inserts a CallRecord. timeLeave is nil for a call that hasn't
// returned yet. add_call always succeeds if the schema exists.
func (r *Recorder) AddCall(callerID, calleeID, traceID, timeEnter int64, timeLeave *int64) {
	r.submit("add_call", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO main.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave) VALUES (?, ?, ?, ?, ?)`,
			callerID, calleeID, traceID, timeEnter, nullableInt64(timeLeave))
		return err
	})
}

// AddCallSync is AddCall, blocking until the write has been applied.
func (r *Recorder) AddCallSync(ctx context.Context, callerID, calleeID, traceID, timeEnter int64, timeLeave *int64) error {
	return r.submitSync(ctx, "add_call", func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO main.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave) VALUES (?, ?, ?, ?, ?)`,
			callerID, calleeID, traceID, timeEnter, nullableInt64(timeLeave))
		return err
	})
}

// UpdateCall settles the unique unsettled call_pts row matching
// (callerId, calleeId, traceId) by setting its time_leave. If the row is
// missing or already settled, this is a no-op — not an error (see
// DESIGN.md's resolution of this ambiguity).
func (r *Recorder) UpdateCall(callerID, calleeID, traceID, timeLeave int64) {
	r.submit("update_call", func(db *sql.DB) error {
		_, err := db.Exec(
			`UPDATE main.call_pts SET time_leave = ?
			 WHERE caller_id = ? AND callee_id = ? AND trace_id = ? AND time_leave IS NULL`,
			timeLeave, callerID, calleeID, traceID)
		return err
	})
}

// UpdateCallSync is UpdateCall, blocking until the write has been applied.
func (r *Recorder) UpdateCallSync(ctx context.Context, callerID, calleeID, traceID, timeLeave int64) error {
	return r.submitSync(ctx, "update_call", func(db *sql.DB) error {
		_, err := db.Exec(
			`UPDATE main.call_pts SET time_leave = ?
			 WHERE caller_id = ? AND callee_id = ? AND trace_id = ? AND time_leave IS NULL`,
			timeLeave, callerID, calleeID, traceID)
		return err
	})
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
