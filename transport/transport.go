// Package transport implements the node's outbound retry queue (spec §4.H):
// every signed wire message the event handler produces is queued per
// QueueIdentifier and resent on a backoff schedule until the recipient
// acknowledges it with Processed, surviving restarts via the persisted
// matrix_messages table (package storage). The actual network leg (talking
// to a federated chat server, in the original node's case) is abstracted
// behind the Sender interface; this package only owns retry bookkeeping,
// the same split htlcswitch.Switch keeps between link-level retry state
// and the lnpeer.Peer responsible for actually writing bytes to a
// connection.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/storage"
	"github.com/raiden-network/raiden-core/wire"
)

// Sender performs the actual network send. Production wiring backs this
// with a Matrix (or other federated transport) client; tests can supply an
// in-memory stub.
type Sender interface {
	SendRaw(recipient primitives.Address, data []byte) error
}

// Config tunes the retry schedule (spec §4.H defaults).
type Config struct {
	RetryTimeout    time.Duration
	RetryTimeoutMax time.Duration
	RetryCount      int
}

// DefaultConfig matches spec §4.H's normative defaults.
func DefaultConfig() Config {
	return Config{
		RetryTimeout:    5 * time.Second,
		RetryTimeoutMax: 60 * time.Second,
		RetryCount:      10,
	}
}

// Inbound is implemented by whatever consumes decoded incoming messages,
// normally an adapter that turns each wire.Message into the matching
// transfer.StateChange and submits it to the driver.
type Inbound interface {
	Receive(sender primitives.Address, msg wire.Message)
}

// Transport owns one retryQueue per QueueIdentifier and the inbound
// message loop that turns received bytes into wire.Message values.
type Transport struct {
	mu         sync.Mutex
	queues     map[string]*retryQueue
	inflight   map[uint32]primitives.QueueIdentifier
	sender     Sender
	storageLog *storage.Log
	cfg        Config
	inbound    Inbound
}

// New constructs a Transport. Call Restore once at startup to rebuild
// queues left pending by a previous run, then Start.
func New(sender Sender, storageLog *storage.Log, cfg Config, inbound Inbound) *Transport {
	return &Transport{
		queues:     make(map[string]*retryQueue),
		inflight:   make(map[uint32]primitives.QueueIdentifier),
		sender:     sender,
		storageLog: storageLog,
		cfg:        cfg,
		inbound:    inbound,
	}
}

// Restore rebuilds every retry queue that still had unacknowledged
// messages when the node last shut down (spec §4.H: "the retry queue
// survives a restart").
func (t *Transport) Restore() error {
	pending, err := t.storageLog.PendingMatrixMessages()
	if err != nil {
		return err
	}
	for _, entry := range pending {
		q := t.queueFor(entry.QueueIdentifier)
		var msg outboundMessage
		if err := json.Unmarshal(entry.Data, &msg); err != nil {
			log.Warnf("transport: dropping unparsable persisted message on %s: %v", entry.QueueIdentifier.Key(), err)
			continue
		}
		q.mu.Lock()
		q.pending = append(q.pending, &queueEntry{message: msg})
		q.mu.Unlock()
	}
	return nil
}

// Start launches every queue's retry goroutine.
func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range t.queues {
		q.start()
	}
}

// Stop halts every queue's retry goroutine.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range t.queues {
		q.stop()
	}
}

// Send implements eventhandler.Transport: it queues msg for delivery to
// queue's recipient, persisting it and waking the retry loop.
func (t *Transport) Send(queue primitives.QueueIdentifier, messageID uint32, msg wire.Message) {
	data, err := wire.Marshal(msg)
	if err != nil {
		log.Errorf("transport: failed to marshal %T: %v", msg, err)
		return
	}
	log.Tracef("transport: send to %v: %v", queue, newLogClosure(func() string {
		return spew.Sdump(msg)
	}))

	t.mu.Lock()
	t.inflight[messageID] = queue
	t.mu.Unlock()

	t.queueFor(queue).enqueue(outboundMessage{MessageIdentifier: messageID, Payload: data})
}

// Remove drops messageID from queue once its Processed acknowledgement has
// been received (spec §4.H). Delivered acknowledgements (transport-level
// only) do not call this: only Processed retires a message.
func (t *Transport) Remove(queue primitives.QueueIdentifier, messageID uint32) {
	t.mu.Lock()
	q, ok := t.queues[queue.Key()]
	delete(t.inflight, messageID)
	t.mu.Unlock()
	if !ok {
		return
	}
	q.remove(messageID)
}

// HandleRaw decodes an inbound payload, retires the matching retry-queue
// entry on a Processed acknowledgement, and forwards everything else
// (including the Processed itself, so the state machine can log it) to
// Inbound. Callers (the Matrix sync loop, in production) call this for
// every message received from a peer.
func (t *Transport) HandleRaw(sender primitives.Address, data []byte) {
	msg, err := wire.Unmarshal(data)
	if err != nil {
		log.Warnf("transport: dropping unparsable message from %s: %v", sender, err)
		return
	}

	if processed, ok := msg.(*wire.Processed); ok {
		t.mu.Lock()
		queue, known := t.inflight[processed.MessageIdentifier]
		t.mu.Unlock()
		if known {
			t.Remove(queue, processed.MessageIdentifier)
		}
	}

	if t.inbound != nil {
		t.inbound.Receive(sender, msg)
	}
}

func (t *Transport) queueFor(queue primitives.QueueIdentifier) *retryQueue {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := queue.Key()
	q, ok := t.queues[key]
	if !ok {
		q = newRetryQueue(queue, t.sender, t.storageLog, t.cfg)
		t.queues[key] = q
		q.start()
	}
	return q
}
