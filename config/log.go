package config

import "github.com/btcsuite/btclog"

// log is the subsystem logger for configuration loading (tag CONF).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by package config.
func UseLogger(logger btclog.Logger) {
	log = logger
}
