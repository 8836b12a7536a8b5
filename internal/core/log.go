package core

import (
	"github.com/btcsuite/btclog"
)

// log is disabled by default. The package does not perform any logging
// until the caller requests it with UseLogger.
var log btclog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
