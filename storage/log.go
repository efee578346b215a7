// Package storage implements the node's append-only state-change log and
// periodic ChainState snapshots (spec §4.E, §6): the persistence layer the
// transition driver (package driver) writes through on every state change,
// so that a crash or restart can restore the exact ChainState it had before
// going down by replaying the log forward from the latest snapshot. The
// three primary tables (state_changes, state_snapshot, state_events) plus
// the two transport auxiliary tables (matrix_config, matrix_messages) are
// normative (spec §6); this package is the only thing in the node that
// touches modernc.org/sqlite directly, the way channeldb is the only thing
// that touches bolt in the teacher.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/transfer"
)

// DefaultSnapshotInterval is how many state_changes rows accumulate between
// automatic snapshots (spec §4.E: "if count since last snapshot >= N").
const DefaultSnapshotInterval = 500

// Log is the append-only state-change log plus snapshot store for one
// node's datadir. It is safe for concurrent use, but spec §4.F reserves
// all writes to the single transition driver; readers (the HTTP API's
// history views) may call StateChangesSince concurrently with writes.
type Log struct {
	mu sync.Mutex

	db *sql.DB

	snapshotInterval int
	entropy          *ulid.MonotonicEntropy
}

// Open opens (creating if necessary) the SQLite-backed log at path, running
// the normative schema (spec §6) if it isn't already present.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, newStorageError("open", err)
	}
	// The transition driver is the sole writer (spec §4.F); a single
	// connection avoids SQLite's "database is locked" surprises under
	// modernc.org/sqlite's default journal mode without reaching for WAL
	// configuration the teacher's own bolt usage never needed either.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, newStorageError("migrate", err)
	}

	l := &Log{
		db:               db,
		snapshotInterval: DefaultSnapshotInterval,
		entropy:          ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := l.recordRun(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// SetSnapshotInterval overrides DefaultSnapshotInterval, mainly for tests
// that want to exercise the snapshot path without writing hundreds of rows.
func (l *Log) SetSnapshotInterval(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshotInterval = n
}

func (l *Log) newULID() string {
	return ulid.MustNew(ulid.Now(), l.entropy).String()
}

func (l *Log) recordRun() error {
	_, err := l.db.Exec(`INSERT INTO runs(started_at, version) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), "raiden-core/0")
	if err != nil {
		return newStorageError("record run", err)
	}
	return nil
}

// ApplyAndPersist runs the spec §4.E write protocol for exactly one
// StateChange against state, the node's current in-memory ChainState:
//
//	BEGIN -> INSERT state_change -> run transfer.StateTransition ->
//	INSERT each emitted event -> maybe INSERT a snapshot -> COMMIT
//
// On any failure the transaction is rolled back and state is returned
// unchanged, matching the "state reverts to the prior value in memory"
// requirement: since the new ChainState was never committed to the log,
// the in-memory value the caller already holds remains authoritative.
func (l *Log) ApplyAndPersist(state *transfer.ChainState, change transfer.StateChange) (*transfer.ChainState, []transfer.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	typeName, data, err := transfer.EncodeStateChange(change)
	if err != nil {
		return state, nil, newStorageError("encode state change", err)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return state, nil, newStorageError("begin", err)
	}

	scID := l.newULID()
	now := time.Now().UnixNano()
	if _, err := tx.Exec(`INSERT INTO state_changes(identifier, data, type_name, timestamp) VALUES (?, ?, ?, ?)`,
		scID, string(data), typeName, now); err != nil {
		tx.Rollback()
		return state, nil, newStorageError("insert state change", err)
	}

	newState, events := transfer.StateTransition(state, change)

	for _, ev := range events {
		evTypeName, evData, err := transfer.EncodeEvent(ev)
		if err != nil {
			tx.Rollback()
			return state, nil, newStorageError("encode event", err)
		}
		if _, err := tx.Exec(`INSERT INTO state_events(identifier, source_statechange_id, data, type_name, timestamp) VALUES (?, ?, ?, ?, ?)`,
			l.newULID(), scID, string(evData), evTypeName, now); err != nil {
			tx.Rollback()
			return state, nil, newStorageError("insert event", err)
		}
	}

	if shouldSnapshot, err := l.maybeSnapshotLocked(tx, newState, scID); err != nil {
		tx.Rollback()
		return state, nil, err
	} else if shouldSnapshot {
		log.Debugf("storage: snapshot taken at state change %s", scID)
	}

	if err := tx.Commit(); err != nil {
		return state, nil, newStorageError("commit", err)
	}

	return newState, events, nil
}

// maybeSnapshotLocked inserts a new state_snapshot row if at least
// snapshotInterval state_changes have accumulated since the last one (spec
// §4.E). Called with l.mu already held, inside the same transaction as the
// state change it snapshots after.
func (l *Log) maybeSnapshotLocked(tx *sql.Tx, state *transfer.ChainState, scID string) (bool, error) {
	var lastCount int64
	var lastSnapshotSCID sql.NullString
	row := tx.QueryRow(`SELECT statechange_id, statechange_qty FROM state_snapshot ORDER BY identifier DESC LIMIT 1`)
	err := row.Scan(&lastSnapshotSCID, &lastCount)
	switch err {
	case nil:
	case sql.ErrNoRows:
		lastCount = 0
	default:
		return false, newStorageError("query last snapshot", err)
	}

	var sinceCount int64
	if lastSnapshotSCID.Valid {
		err = tx.QueryRow(`SELECT COUNT(*) FROM state_changes WHERE identifier > ?`, lastSnapshotSCID.String).Scan(&sinceCount)
	} else {
		err = tx.QueryRow(`SELECT COUNT(*) FROM state_changes`).Scan(&sinceCount)
	}
	if err != nil {
		return false, newStorageError("count state changes since snapshot", err)
	}

	if sinceCount < int64(l.snapshotInterval) {
		return false, nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return false, newStorageError("encode snapshot", err)
	}

	if _, err := tx.Exec(`INSERT INTO state_snapshot(identifier, statechange_id, statechange_qty, data, timestamp) VALUES (?, ?, ?, ?, ?)`,
		l.newULID(), scID, lastCount+sinceCount, string(data), time.Now().UnixNano()); err != nil {
		return false, newStorageError("insert snapshot", err)
	}
	return true, nil
}

// Snapshot is the result of LatestSnapshot: the restored ChainState plus
// the id of the state_change it was taken after, so Restore knows where to
// resume replay.
type Snapshot struct {
	StateChangeID string
	State         *transfer.ChainState
}

// LatestSnapshot returns the newest recorded snapshot, or ErrNoSnapshot if
// none has ever been taken.
func (l *Log) LatestSnapshot() (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var scID, data string
	row := l.db.QueryRow(`SELECT statechange_id, data FROM state_snapshot ORDER BY identifier DESC LIMIT 1`)
	if err := row.Scan(&scID, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoSnapshot
		}
		return nil, newStorageError("query latest snapshot", err)
	}

	state := &transfer.ChainState{}
	if err := json.Unmarshal([]byte(data), state); err != nil {
		return nil, newStorageError("decode snapshot", err)
	}
	return &Snapshot{StateChangeID: scID, State: state}, nil
}

// StateChangeRecord is one row read back from state_changes, decoded into
// its concrete StateChange.
type StateChangeRecord struct {
	Identifier  string
	StateChange transfer.StateChange
}

// StateChangesSince returns every state_changes row with an identifier
// greater than afterID (ULID's lexical order is its creation order), in
// ascending order, ready for sequential replay (spec §4.E Restore). An
// empty afterID returns the entire log.
func (l *Log) StateChangesSince(afterID string) ([]StateChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT identifier, type_name, data FROM state_changes WHERE identifier > ? ORDER BY identifier ASC`, afterID)
	if err != nil {
		return nil, newStorageError("query state changes", err)
	}
	defer rows.Close()

	var out []StateChangeRecord
	for rows.Next() {
		var id, typeName, data string
		if err := rows.Scan(&id, &typeName, &data); err != nil {
			return nil, newStorageError("scan state change", err)
		}
		sc, err := transfer.DecodeStateChange(typeName, []byte(data))
		if err != nil {
			return nil, newStorageError("decode state change", err)
		}
		out = append(out, StateChangeRecord{Identifier: id, StateChange: sc})
	}
	return out, rows.Err()
}

// Restore rebuilds the node's ChainState from the latest snapshot (if any)
// plus every state_change recorded after it, replaying each through
// transfer.StateTransition in order (spec §4.E Restore). Because
// transfer.StateTransition is pure, the rebuilt state is required to match
// the state at the time those changes were originally applied (P1).
func (l *Log) Restore() (*transfer.ChainState, error) {
	var (
		state  *transfer.ChainState
		lastID string
	)

	snap, err := l.LatestSnapshot()
	switch err {
	case nil:
		state = snap.State
		lastID = snap.StateChangeID
	case ErrNoSnapshot:
		state = nil
		lastID = ""
	default:
		return nil, err
	}

	records, err := l.StateChangesSince(lastID)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if state == nil {
			// The very first state change in any log must be
			// ActionInitChain, which StateTransition treats as a
			// constructor regardless of the incoming state value.
			state, _ = transfer.StateTransition(nil, rec.StateChange)
			continue
		}
		state, _ = transfer.StateTransition(state, rec.StateChange)
	}

	if state == nil {
		return nil, fmt.Errorf("storage: empty log has no ChainState to restore")
	}
	return state, nil
}

// EventsForStateChange returns every state_events row recorded against
// sourceStateChangeID, decoded into their concrete Event types. Used by
// operator tooling and tests to audit exactly which events a given input
// produced.
func (l *Log) EventsForStateChange(sourceStateChangeID string) ([]transfer.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT type_name, data FROM state_events WHERE source_statechange_id = ? ORDER BY identifier ASC`, sourceStateChangeID)
	if err != nil {
		return nil, newStorageError("query events", err)
	}
	defer rows.Close()

	var out []transfer.Event
	for rows.Next() {
		var typeName, data string
		if err := rows.Scan(&typeName, &data); err != nil {
			return nil, newStorageError("scan event", err)
		}
		ev, err := transfer.DecodeEvent(typeName, []byte(data))
		if err != nil {
			return nil, newStorageError("decode event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SetMatrixSyncToken persists the transport adapter's federated chat-server
// sync cursor (spec §6 matrix_config), replacing whatever token was stored
// before.
func (l *Log) SetMatrixSyncToken(token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Exec(`DELETE FROM matrix_config`); err != nil {
		return newStorageError("clear matrix config", err)
	}
	if _, err := l.db.Exec(`INSERT INTO matrix_config(sync_token) VALUES (?)`, token); err != nil {
		return newStorageError("set matrix sync token", err)
	}
	return nil
}

// MatrixSyncToken returns the persisted sync cursor, or "" if none has been
// stored yet.
func (l *Log) MatrixSyncToken() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var token sql.NullString
	err := l.db.QueryRow(`SELECT sync_token FROM matrix_config LIMIT 1`).Scan(&token)
	switch err {
	case nil:
		return token.String, nil
	case sql.ErrNoRows:
		return "", nil
	default:
		return "", newStorageError("get matrix sync token", err)
	}
}

// QueueMatrixMessage persists one not-yet-acknowledged outbound message body
// against its QueueIdentifier (spec §6 matrix_messages), so the retry queue
// (package transport) can restore unacknowledged messages across a restart.
func (l *Log) QueueMatrixMessage(queueID primitives.QueueIdentifier, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, err := json.Marshal(queueID)
	if err != nil {
		return newStorageError("encode queue identifier", err)
	}
	if _, err := l.db.Exec(`INSERT INTO matrix_messages(queue_identifier, data) VALUES (?, ?)`,
		string(key), string(data)); err != nil {
		return newStorageError("queue matrix message", err)
	}
	return nil
}

// DequeueMatrixMessages removes every persisted message body for queueID,
// called once the retry queue learns (via ReceiveProcessed) that they have
// all been acknowledged.
func (l *Log) DequeueMatrixMessages(queueID primitives.QueueIdentifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, err := json.Marshal(queueID)
	if err != nil {
		return newStorageError("encode queue identifier", err)
	}
	if _, err := l.db.Exec(`DELETE FROM matrix_messages WHERE queue_identifier = ?`, string(key)); err != nil {
		return newStorageError("dequeue matrix messages", err)
	}
	return nil
}

// PendingMatrixMessage is one not-yet-acknowledged message recovered from a
// prior run, alongside the queue it belongs on.
type PendingMatrixMessage struct {
	QueueIdentifier primitives.QueueIdentifier
	Data            []byte
}

// PendingMatrixMessages returns every persisted, not-yet-dequeued message
// body across all queues, in insertion order, so the retry queue (package
// transport) can rebuild itself on startup.
func (l *Log) PendingMatrixMessages() ([]PendingMatrixMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT queue_identifier, data FROM matrix_messages ORDER BY rowid ASC`)
	if err != nil {
		return nil, newStorageError("query matrix messages", err)
	}
	defer rows.Close()

	var out []PendingMatrixMessage
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, newStorageError("scan matrix message", err)
		}
		var queueID primitives.QueueIdentifier
		if err := json.Unmarshal([]byte(key), &queueID); err != nil {
			return nil, newStorageError("decode queue identifier", err)
		}
		out = append(out, PendingMatrixMessage{QueueIdentifier: queueID, Data: []byte(data)})
	}
	return out, rows.Err()
}
