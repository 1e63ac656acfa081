package mst

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// defaultInboxDepth bounds a single machine's pending message queue. GHS's
// message volume per node is bounded by its degree and the number of
// phases, so a depth comfortably above any single machine's owned-node
// count avoids a sender ever blocking under normal graph sizes.
const defaultInboxDepth = 1 << 16

// Run partitions nodes across k machines, launches their event loops, and
// drives the five-phase GHS round to termination. It returns the combined
// cluster report once every machine has processed bye.
//
// k machines are goroutines exchanging Go values over channels, not
// separate processes: there is no real network distribution here, only
// partitioning and message-passing discipline.
func Run(ctx context.Context, nodes []*Node, k int) ([]ClusterLine, error) {
	runID := uuid.New()
	log := logrus.WithField("run_id", runID)

	owned := make([][]*Node, k)
	ctxByMachine := make([]WorkerContext, k)
	for i := 0; i < k; i++ {
		ctxByMachine[i] = WorkerContext{Myself: i, Machines: k}
	}
	for _, n := range nodes {
		m := ctxByMachine[0].MachineOf(n.ProcID)
		owned[m] = append(owned[m], n)
	}

	names := machineNames(k)
	transport := NewTransport(k, defaultInboxDepth)
	machines := make([]*Machine, k)
	for i := 0; i < k; i++ {
		machines[i] = NewMachine(ctxByMachine[i], owned[i], transport)
		machines[i].log = machines[i].log.WithField("name", names[i])
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, m := range machines {
		m := m
		group.Go(func() error {
			m.Run()
			return nil
		})
	}

	log.WithField("machines", k).Debug("turtles: starting GHS round")
	transport.Broadcast(Message{Kind: KindPhaseInit, Phase: PhasePrepare})

	if err := waitUntilDone(groupCtx, machines); err != nil {
		return nil, err
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	transport.CloseAll()

	var report []ClusterLine
	for _, m := range machines {
		report = append(report, m.Lines...)
	}
	log.WithField("nodes", len(report)).Debug("turtles: GHS round complete")
	return report, nil
}

// waitUntilDone is the supervisor's barrier: it sits outside the K workers,
// owning no node state of its own, and is satisfied once every worker has
// exited its loop (having processed bye).
func waitUntilDone(ctx context.Context, machines []*Machine) error {
	for _, m := range machines {
		select {
		case <-m.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
