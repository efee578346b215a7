package chainsync

import "github.com/btcsuite/btclog"

// log is the subsystem logger for chain sync (tag SYNC).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by package chainsync.
func UseLogger(logger btclog.Logger) {
	log = logger
}
