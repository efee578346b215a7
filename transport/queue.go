package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/storage"
)

// outboundMessage is one not-yet-acknowledged message on a retry queue,
// persisted across restarts via (storage.Log).QueueMatrixMessage.
type outboundMessage struct {
	MessageIdentifier uint32 `json:"message_identifier"`
	Payload           []byte `json:"payload"`
}

// queueEntry tracks one outboundMessage's resend schedule, matching spec
// §4.H's TimeoutGenerator: retry_timeout-spaced resends until retry_count
// is exhausted, then a doubling backoff capped at retry_timeout_max. The
// doubling itself is delegated to backoff.ExponentialBackOff with
// randomization disabled, so the growth is the deterministic 1x/2x/4x/...
// sequence spec §8 S6 walks through rather than cenkalti's usual jittered
// schedule.
type queueEntry struct {
	message  outboundMessage
	tries    int
	nextSend time.Time
	backoff  *backoff.ExponentialBackOff
}

// retryQueue resends every still-pending message on the schedule spec
// §4.H defines, one tick per second, matching the original node's
// per-queue retrier (raiden/network/transport/matrix/utils, RetryQueue).
// Grounded on htlcswitch.Switch's per-link goroutine shape: one queue, one
// goroutine, commands delivered over channels rather than by locking
// shared state from other goroutines.
type retryQueue struct {
	queueID    primitives.QueueIdentifier
	recipient  primitives.Address
	sender     Sender
	storageLog *storage.Log

	retryTimeout    time.Duration
	retryTimeoutMax time.Duration
	retryCount      int

	mu      sync.Mutex
	pending []*queueEntry

	quit chan struct{}
	wg   sync.WaitGroup
}

func newRetryQueue(queueID primitives.QueueIdentifier, sender Sender, storageLog *storage.Log, cfg Config) *retryQueue {
	return &retryQueue{
		queueID:         queueID,
		recipient:       queueID.Recipient,
		sender:          sender,
		storageLog:      storageLog,
		retryTimeout:    cfg.RetryTimeout,
		retryTimeoutMax: cfg.RetryTimeoutMax,
		retryCount:      cfg.RetryCount,
		quit:            make(chan struct{}),
	}
}

func (q *retryQueue) start() {
	q.wg.Add(1)
	go q.run()
}

func (q *retryQueue) stop() {
	close(q.quit)
	q.wg.Wait()
}

// enqueue appends msg to the queue and persists it; the next 1s tick arms
// its initial resend timer (spec §4.H: "if next_send unset, set next_send
// = now + retry_timeout").
func (q *retryQueue) enqueue(msg outboundMessage) {
	q.mu.Lock()
	q.pending = append(q.pending, &queueEntry{message: msg})
	q.mu.Unlock()

	if data, err := json.Marshal(msg); err == nil {
		if err := q.storageLog.QueueMatrixMessage(q.queueID, data); err != nil {
			log.Errorf("transport: failed to persist queued message on %s: %v", q.queueID.Key(), err)
		}
	}
}

// remove drops a message by identifier once its Processed acknowledgement
// has arrived (spec §4.H), rewriting the persisted queue to match.
func (q *retryQueue) remove(messageID uint32) {
	q.mu.Lock()
	kept := q.pending[:0]
	for _, e := range q.pending {
		if e.message.MessageIdentifier != messageID {
			kept = append(kept, e)
		}
	}
	q.pending = kept
	snapshot := append([]*queueEntry(nil), q.pending...)
	q.mu.Unlock()

	if err := q.storageLog.DequeueMatrixMessages(q.queueID); err != nil {
		log.Errorf("transport: failed to clear persisted queue %s: %v", q.queueID.Key(), err)
		return
	}
	for _, e := range snapshot {
		if data, err := json.Marshal(e.message); err == nil {
			if err := q.storageLog.QueueMatrixMessage(q.queueID, data); err != nil {
				log.Errorf("transport: failed to re-persist queued message on %s: %v", q.queueID.Key(), err)
			}
		}
	}
}

func (q *retryQueue) isEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// run ticks once a second, applying spec §4.H's ready() rule to every
// pending entry.
func (q *retryQueue) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case now := <-ticker.C:
			q.tick(now)
		}
	}
}

func (q *retryQueue) tick(now time.Time) {
	q.mu.Lock()
	entries := append([]*queueEntry(nil), q.pending...)
	q.mu.Unlock()

	for _, e := range entries {
		q.readyOne(e, now)
	}
}

// readyOne implements spec §4.H's per-entry ready() check exactly:
//   - next_send unset -> arm it, no send.
//   - now >= next_send and tries < retry_count -> resend, rearm at
//     now+retry_timeout, tries += 1.
//   - now >= next_send and tries >= retry_count -> resend, rearm at
//     now+timeout where timeout doubles (capped at retry_timeout_max)
//     every time this branch is taken.
func (q *retryQueue) readyOne(e *queueEntry, now time.Time) {
	if e.nextSend.IsZero() {
		e.nextSend = now.Add(q.retryTimeout)
		return
	}
	if now.Before(e.nextSend) {
		return
	}

	if e.tries < q.retryCount {
		q.resend(e)
		e.nextSend = now.Add(q.retryTimeout)
		e.tries++
		return
	}

	if e.backoff == nil {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = q.retryTimeout
		bo.MaxInterval = q.retryTimeoutMax
		bo.Multiplier = 2
		bo.RandomizationFactor = 0
		bo.Reset()
		e.backoff = bo
	}
	timeout := e.backoff.NextBackOff()
	e.nextSend = now.Add(timeout)
	q.resend(e)
}

func (q *retryQueue) resend(e *queueEntry) {
	if err := q.sender.SendRaw(q.recipient, e.message.Payload); err != nil {
		log.Debugf("transport: send to %s failed (attempt %d): %v", q.recipient, e.tries, err)
	}
}
