package store

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runtime bundles the pieces of the persistence pipeline a host process
// needs to carry across a fork: the Store, its Recorder, and its Finalizer.
// PreFork and PostFork operate on this trio rather than on globals, so a
// host embedding multiple TURTLES-instrumented components never collides
// on package-level state.
type Runtime struct {
	Store     *Store
	Recorder  *Recorder
	Finalizer *Finalizer
}

// PreFork must be called by the host immediately before it calls the real
// fork(2): stop the finalizer (its Stop already performs one final
// synchronous finalize plus the flush-remaining pass), drain the recorder,
// then close the store. TURTLES never forks a process itself; PreFork and
// PostFork are library hooks a host process's own fork wrapper calls
// around its real fork.
func PreFork(rt *Runtime) error {
	if rt.Finalizer != nil {
		rt.Finalizer.Stop()
	}
	rt.Recorder.Close()
	return rt.Store.Close()
}

// PostFork must be called by both the parent and the child immediately
// after fork(2) returns, with isChild indicating which one is calling and
// childPID the child's OS pid (as observed by whichever side is calling —
// the parent learns it from fork's return value, the child from getpid()).
//
// The child first copies the parent's durable file to its own
// pid-suffixed path, preserving call-graph history across the fork so a
// later merge of the per-pid files yields their union. Both sides then
// open a fresh Store and restart the Recorder and Finalizer —
// PreFork already tore down the old ones, and SQLite connections and
// goroutines don't survive a fork regardless.
func PostFork(rt *Runtime, isChild bool, childPID int) (*Runtime, error) {
	cfg := rt.Store.Config()
	interval := defaultInterval(rt.Finalizer)

	if isChild {
		parentPath := cfg.DurableFilePath()
		cfg.PID = childPID
		if err := copyFile(parentPath, cfg.DurableFilePath()); err != nil {
			return nil, errors.Wrap(err, "copying parent database to child")
		}
	}

	s, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	recorder := NewRecorder(s)
	finalizer := NewFinalizer(recorder, cfg.Mode, interval)
	finalizer.Start()

	logrus.WithFields(logrus.Fields{
		"pid":      cfg.PID,
		"is_child": isChild,
		"path":     cfg.DurableFilePath(),
	}).Debug("turtles: reopened store after fork")

	return &Runtime{Store: s, Recorder: recorder, Finalizer: finalizer}, nil
}

func defaultInterval(f *Finalizer) time.Duration {
	if f == nil {
		return DefaultFinalizeInterval
	}
	return f.interval
}

// copyFile duplicates src to dst. A missing src (e.g. Direct mode before
// any write ever hit disk) is not an error: the child simply starts with
// no inherited history, same as the parent once did.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
