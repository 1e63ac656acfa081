package trace

import (
	"github.com/flightaware/turtles/fingerprint"
	"github.com/flightaware/turtles/store"
)

// Tracer is the trace intake API: the thin layer between a host language's
// enter/exit interception (an external collaborator, not this package's
// concern) and the recorder. It owns nothing but a *store.Runtime and the
// parsed Options that gate whether it does anything at all.
type Tracer struct {
	rt      *store.Runtime
	opts    Options
	enabled bool
}

// NewTracer builds a Tracer bound to rt. It is safe to hold even when
// opts.Enabled is false — every intake call becomes a cheap no-op.
func NewTracer(rt *store.Runtime, opts Options) *Tracer {
	return &Tracer{rt: rt, opts: opts, enabled: opts.Enabled}
}

// DefineProc registers a procedure's qualified name, returning its ProcId.
// Framework-internal names (the trace re-entry guard) are hashed for the
// caller's convenience but never persisted.
func (t *Tracer) DefineProc(qualifiedName string, timeDefined int64) int64 {
	id := fingerprint.ProcID(qualifiedName)
	if !t.enabled || IsFrameworkInternal(qualifiedName) {
		return id
	}
	t.rt.Recorder.AddProc(id, qualifiedName, timeDefined)
	return id
}

// Enter records a call's entry and returns the TraceId identifying it, to
// be handed back to Leave when the call returns. callerName == "" denotes
// a top-level call (the callerId = 0 sentinel).
//
// Enter is a no-op (returning fingerprint.NoCaller) when tracing is
// disabled or either side of the edge is framework-internal, satisfying
// the trace re-entry guard.
func (t *Tracer) Enter(callerName, calleeName string, threadID, stackDepth, sourceLine, timeEnter int64) int64 {
	if !t.enabled || IsFrameworkInternal(callerName) || IsFrameworkInternal(calleeName) {
		return fingerprint.NoCaller
	}

	callerID := fingerprint.NoCaller
	if callerName != "" {
		callerID = fingerprint.ProcID(callerName)
	}
	calleeID := fingerprint.ProcID(calleeName)
	traceID := fingerprint.TraceID(threadID, stackDepth, callerID, sourceLine, calleeID)

	t.rt.Recorder.AddCall(callerID, calleeID, traceID, timeEnter, nil)
	return traceID
}

// Leave settles the call opened by the Enter that produced traceID.
// Recomputing caller/callee ids from the same arguments rather than
// threading the ids through the host's call stack keeps the intake API
// stateless between Enter and Leave.
func (t *Tracer) Leave(callerName, calleeName string, threadID, stackDepth, sourceLine, timeLeave int64) {
	if !t.enabled || IsFrameworkInternal(callerName) || IsFrameworkInternal(calleeName) {
		return
	}

	callerID := fingerprint.NoCaller
	if callerName != "" {
		callerID = fingerprint.ProcID(callerName)
	}
	calleeID := fingerprint.ProcID(calleeName)
	traceID := fingerprint.TraceID(threadID, stackDepth, callerID, sourceLine, calleeID)

	t.rt.Recorder.UpdateCall(callerID, calleeID, traceID, timeLeave)
}
