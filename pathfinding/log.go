package pathfinding

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the pathfinding client (tag PFS).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by package pathfinding.
func UseLogger(logger btclog.Logger) {
	log = logger
}
