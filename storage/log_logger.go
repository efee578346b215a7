package storage

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the storage package (STOR), following the
// same disabled-until-wired convention as every other package's log.go.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the storage package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
