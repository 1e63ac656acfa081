package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/flightaware/turtles/metrics"
)

// DefaultFinalizeInterval is used when a caller passes a zero interval to
// NewFinalizer.
const DefaultFinalizeInterval = 30 * time.Second

// Finalizer periodically moves settled call_pts rows (time_leave non-null)
// from the ephemeral "main" namespace into the durable "stage1" namespace,
// running its tick on the same Recorder actor as ordinary writes so a tick
// can never race a concurrent AddCall/UpdateCall.
//
// In Direct commit mode there is no stage1 to finalize into; NewFinalizer
// still returns a usable Finalizer, but Start is a no-op.
type Finalizer struct {
	recorder *Recorder
	mode     CommitMode
	interval time.Duration
	log      *logrus.Entry

	stop chan struct{}
	done chan struct{}
}

// NewFinalizer builds a Finalizer bound to recorder. interval <= 0 selects
// DefaultFinalizeInterval.
func NewFinalizer(recorder *Recorder, mode CommitMode, interval time.Duration) *Finalizer {
	if interval <= 0 {
		interval = DefaultFinalizeInterval
	}
	return &Finalizer{
		recorder: recorder,
		mode:     mode,
		interval: interval,
		log:      logrus.WithField("component", "finalizer"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic tick loop. It returns immediately; the loop
// runs until Stop is called. Calling Start in Direct mode is harmless but
// does nothing useful, since finalizeTick has nothing to move.
func (f *Finalizer) Start() {
	if f.mode != Staged {
		close(f.done)
		return
	}
	go f.run()
}

func (f *Finalizer) run() {
	defer close(f.done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.tick(context.Background()); err != nil {
				f.log.WithError(err).Error("finalize tick failed")
			}
		case <-f.stop:
			// Shutdown gets one final synchronous ordinary tick, then a
			// second pass that flushes rows still unsettled regardless of
			// time_leave, so only a crash-kill (not an orderly shutdown)
			// ever loses an in-flight call.
			if err := f.tick(context.Background()); err != nil {
				f.log.WithError(err).Error("final flush failed")
			}
			if err := f.flushRemaining(context.Background()); err != nil {
				f.log.WithError(err).Error("flush-remaining pass failed")
			}
			return
		}
	}
}

// Stop signals the tick loop to run one last flush and exit, and blocks
// until it has. Calling Stop more than once is safe.
func (f *Finalizer) Stop() {
	select {
	case <-f.stop:
		// already stopped
	default:
		close(f.stop)
	}
	<-f.done
}

// tick submits one finalize pass to the recorder actor and waits for it to
// complete, recording metrics for the attempt.
func (f *Finalizer) tick(ctx context.Context) error {
	start := time.Now()
	moved, err := f.runOnRecorder(ctx)
	metrics.FinalizerTickDuration.Observe(time.Since(start).Seconds())

	status := metrics.Ok
	if err != nil {
		status = metrics.Fail
	}
	metrics.FinalizerTicksTotal.WithLabelValues(status).Inc()
	if err == nil {
		metrics.FinalizerRowsMovedTotal.WithLabelValues("call_pts").Add(float64(moved))
	}
	return err
}

func (f *Finalizer) runOnRecorder(ctx context.Context) (int64, error) {
	var moved int64
	err := f.recorder.submitSync(ctx, "finalize_tick", func(db *sql.DB) error {
		n, err := finalizeTick(db, nowMicros())
		moved = n
		return err
	})
	return moved, err
}

func (f *Finalizer) flushRemaining(ctx context.Context) error {
	return f.recorder.submitSync(ctx, "finalize_flush_remaining", func(db *sql.DB) error {
		return finalizeFlushRemaining(db)
	})
}

// nowMicros is the finalizer's clock, isolated behind a function so tests
// can reason about tCut without a real sleep where the scenario allows it.
func nowMicros() int64 {
	return time.Now().UnixMicro()
}

// finalizeTick runs the five-step transactional move:
//  1. lastFinalize = MAX(MAX(stage1.proc_ids.time_defined), MAX(stage1.call_pts.time_leave), 0)
//  2. tCut = now()
//  3. copy main.proc_ids with time_defined > lastFinalize into stage1.proc_ids (ignore conflicts)
//  4. copy main.call_pts with time_leave IS NOT NULL AND time_leave < tCut into stage1.call_pts (ignore conflicts)
//  5. delete the same rows from main.call_pts
//
// Novelty is judged against stage1's own timestamps rather than a separate
// cursor, so a finalizer restarted mid-tick simply recomputes lastFinalize
// from what already landed and re-copies nothing already there.
func finalizeTick(db *sql.DB, tCut int64) (movedCalls int64, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "beginning finalize transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var lastFinalize int64
	row := tx.QueryRow(`
		SELECT MAX(v) FROM (
			SELECT COALESCE(MAX(time_defined), 0) AS v FROM stage1.proc_ids
			UNION ALL
			SELECT COALESCE(MAX(time_leave), 0) AS v FROM stage1.call_pts
			UNION ALL
			SELECT 0 AS v
		)`)
	if err = row.Scan(&lastFinalize); err != nil {
		return 0, errors.Wrap(err, "computing lastFinalize")
	}

	if _, err = tx.Exec(`
		INSERT OR IGNORE INTO stage1.proc_ids(proc_id, proc_name, time_defined)
		SELECT proc_id, proc_name, time_defined FROM main.proc_ids
		WHERE time_defined > ?`, lastFinalize); err != nil {
		return 0, errors.Wrap(err, "copying newly defined procs to stage1")
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO stage1.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave)
		SELECT caller_id, callee_id, trace_id, time_enter, time_leave FROM main.call_pts
		WHERE time_leave IS NOT NULL AND time_leave < ?`, tCut)
	if err != nil {
		return 0, errors.Wrap(err, "copying settled calls to stage1")
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting rows moved")
	}

	if _, err = tx.Exec(`
		DELETE FROM main.call_pts
		WHERE time_leave IS NOT NULL AND time_leave < ?`, tCut); err != nil {
		return 0, errors.Wrap(err, "deleting settled calls from main")
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing finalize transaction")
	}
	return inserted, nil
}

// finalizeFlushRemaining is the shutdown-time pass: copy every remaining
// main.call_pts row into stage1 regardless of time_leave, so an orderly
// shutdown never loses an in-flight (unsettled) call. finalizeTick's usual
// settled/time_leave<tCut predicate does not apply here — that predicate
// exists to bound an in-progress tick's view of "settled", not to protect
// unsettled rows from ever being persisted.
func finalizeFlushRemaining(db *sql.DB) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning flush-remaining transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`
		INSERT OR IGNORE INTO stage1.proc_ids(proc_id, proc_name, time_defined)
		SELECT proc_id, proc_name, time_defined FROM main.proc_ids`); err != nil {
		return errors.Wrap(err, "flushing remaining procs to stage1")
	}
	if _, err = tx.Exec(`
		INSERT OR IGNORE INTO stage1.call_pts(caller_id, callee_id, trace_id, time_enter, time_leave)
		SELECT caller_id, callee_id, trace_id, time_enter, time_leave FROM main.call_pts`); err != nil {
		return errors.Wrap(err, "flushing remaining calls to stage1")
	}
	if _, err = tx.Exec(`DELETE FROM main.call_pts`); err != nil {
		return errors.Wrap(err, "clearing main after flush")
	}
	return errors.Wrap(tx.Commit(), "committing flush-remaining transaction")
}
