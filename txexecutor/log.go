package txexecutor

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the transaction executor (tag TXEX).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by package txexecutor.
func UseLogger(logger btclog.Logger) {
	log = logger
}
