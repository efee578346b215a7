package primitives

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the primitives package. It is a no-op
// backend until UseLogger is called by the daemon's logging setup, mirroring
// the per-package logger convention used throughout the teacher packages.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the primitives package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
