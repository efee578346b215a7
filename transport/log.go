package transport

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the transport package (XPRT).
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the transport package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// logClosure defers an expensive String() (a spew.Sdump of a wire message,
// typically) until btclog actually decides to log the line, rather than on
// every call regardless of level.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
