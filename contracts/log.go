package contracts

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the contracts package.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the contracts package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
