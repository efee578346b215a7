package eventhandler

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the eventhandler package (EVTH).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the eventhandler package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
