package wire

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the wire package.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the wire package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
