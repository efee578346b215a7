package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/raiden-network/raiden-core/api"
	"github.com/raiden-network/raiden-core/chainsync"
	"github.com/raiden-network/raiden-core/config"
	"github.com/raiden-network/raiden-core/contracts"
	"github.com/raiden-network/raiden-core/driver"
	"github.com/raiden-network/raiden-core/eventhandler"
	"github.com/raiden-network/raiden-core/pathfinding"
	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/storage"
	"github.com/raiden-network/raiden-core/transport"
	"github.com/raiden-network/raiden-core/txexecutor"
	"github.com/raiden-network/raiden-core/wire"
)

// backendLog is the shared btclog backend every subsystem logger is
// carved out of, matching the teacher's log.go convention of one backend
// writing to a single stream with per-subsystem tags prefixing each line.
var backendLog = btclog.NewBackend(os.Stdout)

// log carries this package's own messages (startup, shutdown, the HTTP
// server's goroutine), distinct from every subsystem logger below.
var log = backendLog.Logger("RDND")

// subsystemLoggers names every package's logger tag, used both to build
// the initial set of loggers and to re-set levels from --log-level/
// --debuglevel.
var subsystemLoggers = map[string]btclog.Logger{
	"PRIM": backendLog.Logger("PRIM"),
	"SIGN": backendLog.Logger("SIGN"),
	"STOR": backendLog.Logger("STOR"),
	"DRVR": backendLog.Logger("DRVR"),
	"EVTH": backendLog.Logger("EVTH"),
	"XPRT": backendLog.Logger("XPRT"),
	"SYNC": backendLog.Logger("SYNC"),
	"TXEX": backendLog.Logger("TXEX"),
	"WIRE": backendLog.Logger("WIRE"),
	"CONF": backendLog.Logger("CONF"),
	"APIL": backendLog.Logger("APIL"),
	"CNTR": backendLog.Logger("CNTR"),
	"PFSC": backendLog.Logger("PFSC"),
}

// useLoggers wires every package's UseLogger hook to its tag in
// subsystemLoggers.
func useLoggers() {
	primitives.UseLogger(subsystemLoggers["PRIM"])
	storage.UseLogger(subsystemLoggers["STOR"])
	driver.UseLogger(subsystemLoggers["DRVR"])
	eventhandler.UseLogger(subsystemLoggers["EVTH"])
	transport.UseLogger(subsystemLoggers["XPRT"])
	chainsync.UseLogger(subsystemLoggers["SYNC"])
	txexecutor.UseLogger(subsystemLoggers["TXEX"])
	wire.UseLogger(subsystemLoggers["WIRE"])
	config.UseLogger(subsystemLoggers["CONF"])
	api.UseLogger(subsystemLoggers["APIL"])
	contracts.UseLogger(subsystemLoggers["CNTR"])
	pathfinding.UseLogger(subsystemLoggers["PFSC"])
}

// setLogLevels applies levelStr (trace/debug/info/warn/error/critical) to
// every subsystem logger.
func setLogLevels(levelStr string) {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		level = btclog.LevelInfo
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
	log.SetLevel(level)
}
