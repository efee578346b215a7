package driver

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the counters/gauges the driver updates as it processes
// transition batches. Registered lazily via MustRegister by cmd/raidennode
// so tests constructing a bare Driver never touch the default registry.
var (
	batchesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "raiden",
		Subsystem: "driver",
		Name:      "batches_processed_total",
		Help:      "Transition batches successfully applied to the chain state.",
	})
	stateChangesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "raiden",
		Subsystem: "driver",
		Name:      "state_changes_rejected_total",
		Help:      "StateChanges rejected by transfer.StateTransition or storage.ApplyAndPersist.",
	})
	eventsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "raiden",
		Subsystem: "driver",
		Name:      "events_dispatched_total",
		Help:      "Events handed to the EventDispatcher after a batch completes.",
	})
)

// RegisterMetrics adds the driver's collectors to reg. Call once at startup;
// Driver itself never registers on its own so unit tests can construct many
// Drivers without colliding on the default registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(batchesProcessed, stateChangesRejected, eventsDispatched)
}
