package api

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the API layer (tag APIL).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by package api.
func UseLogger(logger btclog.Logger) {
	log = logger
}
