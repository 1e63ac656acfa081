// Package metrics collects the prometheus counters and histograms exported
// by the recorder/finalizer pipeline and the MST engine. TURTLES never binds
// a listening socket itself (it's a library embedded in a host runtime); a
// host process that already runs a prometheus registry gets these for free
// by registering them with prometheus.MustRegister.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for the "status" label used across the recorder counters below.
const (
	Ok   = "ok"
	Fail = "fail"
)

var (
	// RecorderQueueDepth is the number of write requests currently queued
	// ahead of the recorder actor.
	RecorderQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turtles_recorder_queue_depth",
		Help: "Number of pending writes queued to the recorder actor.",
	})
	// RecorderWritesTotal counts recorder operations by kind and outcome.
	RecorderWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turtles_recorder_writes_total",
		Help: "Cumulative recorder operations, by operation and status.",
	}, []string{"operation", "status"})
	// FinalizerTicksTotal counts finalizer runs by outcome.
	FinalizerTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turtles_finalizer_ticks_total",
		Help: "Cumulative finalizer ticks, by status.",
	}, []string{"status"})
	// FinalizerRowsMovedTotal counts rows migrated from main to stage1.
	FinalizerRowsMovedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turtles_finalizer_rows_moved_total",
		Help: "Cumulative rows moved from the ephemeral store to the durable store, by table.",
	}, []string{"table"})
	// FinalizerTickDuration observes wall time spent per finalize.
	FinalizerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turtles_finalizer_tick_duration_seconds",
		Help:    "Duration of a single finalizer tick.",
		Buckets: prometheus.DefBuckets,
	})
	// MSTPhaseTransitionsTotal counts phase controller advances, by phase.
	MSTPhaseTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turtles_mst_phase_transitions_total",
		Help: "Cumulative GHS phase controller transitions, by phase entered.",
	}, []string{"phase"})
)

// Collectors returns every collector this package defines, for a host
// process to pass to prometheus.MustRegister.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RecorderQueueDepth,
		RecorderWritesTotal,
		FinalizerTicksTotal,
		FinalizerRowsMovedTotal,
		FinalizerTickDuration,
		MSTPhaseTransitionsTotal,
	}
}
