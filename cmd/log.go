package cmd

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/illarion/lockkv/internal/core"
	"github.com/illarion/lockkv/internal/storage"
)

// subsystemLoggers maps each subsystem tag to the function installing its logger.
var subsystemLoggers = map[string]func(btclog.Logger){
	"CORE": core.UseLogger,
	"STOR": storage.UseLogger,
}

// SetupLogging routes every subsystem to stderr at debug level when
// verbose is set. Logging stays disabled otherwise.
func SetupLogging(verbose bool) {
	if !verbose {
		return
	}

	backend := btclog.NewBackend(os.Stderr)
	for tag, use := range subsystemLoggers {
		logger := backend.Logger(tag)
		logger.SetLevel(btclog.LevelDebug)
		use(logger)
	}
}
