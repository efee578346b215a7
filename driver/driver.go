// Package driver implements the transition driver (spec §4.F): the single
// writer of the node's ChainState. Every other component — chain sync,
// the transport's inbound message reader, the HTTP API's action handlers —
// normalizes its input into one or more transfer.StateChange values and
// hands them to Driver.Transition; the driver is the only thing that calls
// transfer.StateTransition, and the only thing that appends to the
// persistent log (package storage). This single-writer-with-message-passing
// shape replaces the multi-lock/observer pattern the original node's
// surrounding asyncio/tokio runtime used, matching the cooperative
// command-loop style of the teacher's htlcswitch.Switch (switch.go's
// htlcForwarder loop draining linkControl/chanCloseRequests/resolutionMsgs
// over one goroutine).
package driver

import (
	"sync"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/storage"
	"github.com/raiden-network/raiden-core/transfer"
)

// EventDispatcher receives every event a processed batch of state changes
// emitted, in order, after the state lock has already been released (spec
// §4.F: "the driver never blocks on outbound network calls while holding
// the state lock"). Package eventhandler implements this for production
// use; tests can supply a simple slice-collecting stub.
type EventDispatcher interface {
	Dispatch(events []transfer.Event)
}

// transitionRequest is one batch submitted to the driver's single
// processing goroutine, mirroring the cmd-struct-over-channel pattern
// htlcswitch.Switch uses for addLinkCmd/getLinkCmd/updatePoliciesCmd.
type transitionRequest struct {
	batch []transfer.StateChange
	done  chan error
}

// Driver serializes every StateChange into transfer.StateTransition,
// persists the result through (storage.Log), and dispatches the resulting
// events, in the order spec §4.F and §5 require.
type Driver struct {
	stateMu sync.RWMutex
	state   *transfer.ChainState

	storageLog *storage.Log
	dispatcher EventDispatcher

	requests chan transitionRequest
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Driver over an already-restored (or freshly initialized)
// ChainState. Call Start before the first Transition.
func New(initialState *transfer.ChainState, storageLog *storage.Log, dispatcher EventDispatcher) *Driver {
	return &Driver{
		state:      initialState,
		storageLog: storageLog,
		dispatcher: dispatcher,
		requests:   make(chan transitionRequest),
		quit:       make(chan struct{}),
	}
}

// Start launches the driver's single processing goroutine.
func (d *Driver) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop signals the processing goroutine to drain its current request and
// exit, matching the cancellation contract of spec §5: "on receipt they
// drain their current iteration ... and exit."
func (d *Driver) Stop() {
	close(d.quit)
	d.wg.Wait()
}

func (d *Driver) run() {
	defer d.wg.Done()
	for {
		select {
		case req := <-d.requests:
			req.done <- d.applyBatch(req.batch)
		case <-d.quit:
			return
		}
	}
}

// Transition submits an ordered batch of StateChanges for processing and
// blocks until every change in it has been persisted and dispatched (spec
// §4.F: "transition(batch) -> Result<(), Error>"). Safe to call
// concurrently from chain sync, the transport reader, and API handlers;
// batches from a single caller are applied in the order submitted, and
// batches from different callers never interleave mid-batch (spec §5
// ordering guarantees).
func (d *Driver) Transition(batch []transfer.StateChange) error {
	req := transitionRequest{batch: batch, done: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-d.quit:
		return errDriverStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-d.quit:
		return errDriverStopped
	}
}

// applyBatch runs the write protocol (spec §4.E) for each change in order,
// holding the state lock only long enough to compute and persist each
// transition, then dispatches every event produced by the whole batch once
// the lock has been released.
func (d *Driver) applyBatch(batch []transfer.StateChange) error {
	var allEvents []transfer.Event

	for _, change := range batch {
		d.stateMu.Lock()
		newState, events, err := d.storageLog.ApplyAndPersist(d.state, change)
		if err != nil {
			d.stateMu.Unlock()
			stateChangesRejected.Inc()
			log.Errorf("driver: state change %T rejected: %v", change, err)
			return err
		}
		d.state = newState
		d.stateMu.Unlock()

		allEvents = append(allEvents, events...)
	}

	batchesProcessed.Inc()
	if d.dispatcher != nil && len(allEvents) > 0 {
		eventsDispatched.Add(float64(len(allEvents)))
		d.dispatcher.Dispatch(allEvents)
	}
	return nil
}

// State returns a snapshot of the current ChainState pointer under a shared
// read lock. Callers (HTTP views, chain-sync filter construction) must not
// mutate the returned value and must not hold it across any operation that
// could itself reach Transition, per spec §5's "read holders must release
// before any await that could reach the driver."
func (d *Driver) State() *transfer.ChainState {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state
}

// BlockNumber is a convenience accessor used by chain sync to compute the
// next (from_block, to_block] range to poll.
func (d *Driver) BlockNumber() primitives.BlockNumber {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state.BlockNumber
}

var errDriverStopped = &driverStoppedError{}

type driverStoppedError struct{}

func (*driverStoppedError) Error() string { return "driver: stopped" }
