package storage

import "errors"

// Sentinel errors for expected storage conditions, mirroring the teacher's
// channeldb/error.go convention of package-level error values checked with
// errors.Is rather than ad-hoc string matching.
var (
	// ErrNoSnapshot is returned by LatestSnapshot when the log has never
	// been snapshotted (e.g. a freshly created datadir).
	ErrNoSnapshot = errors.New("storage: no snapshot recorded yet")

	// ErrStateChangeNotFound is returned when a state_changes row named
	// by id does not exist.
	ErrStateChangeNotFound = errors.New("storage: state change not found")
)

// StorageError wraps an unexpected I/O, JSON or lock fault as the tagged
// error family spec §7 requires: fatal to the current state change, never
// to the node, and always carrying enough context (via errors.Unwrap) for
// the driver to log it and continue with the next change.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
