package fingerprint

import "errors"

var errInvalidUTF8 = errors.New("fingerprint: input is not valid UTF-8")

// NoCaller is the sentinel ProcId used as CallRecord.callerId for a
// top-level call with no caller. It never appears as a ProcRecord.procId.
const NoCaller int64 = 0

// ProcID computes the ProcId of a fully-qualified procedure name. It is a
// thin, named wrapper over HashString so call sites read as intent
// ("the id of this procedure") rather than a bare hash call.
func ProcID(qualifiedName string) int64 {
	return HashString(qualifiedName)
}

// TraceID computes the TraceId disambiguating one invocation of a
// caller/callee edge from another concurrent or recursive one, by hashing
// (threadId, stackDepth, callerId, sourceLine, calleeId) in that order.
func TraceID(threadID, stackDepth, callerID, sourceLine, calleeID int64) int64 {
	return HashInts([]int64{threadID, stackDepth, callerID, sourceLine, calleeID})
}
