package driver

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the driver package (DRVR).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the driver package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
