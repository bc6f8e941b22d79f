package main

import (
	"fmt"
	"os"

	"github.com/daglabs/ledgerd/logs"
)

var (
	log      = logs.Disabled("MAIN")
	minerLog = logs.Disabled("MINR")
	peerLog  = logs.Disabled("PEER")
	nodeLog  = logs.Disabled("NODE")
)

// initLogs opens the rotating log files and attaches every subsystem
// logger to them at the configured level.
func initLogs(cfg *config) {
	if err := logs.InitBackend(cfg.logFile(), cfg.errLogFile()); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log files: %s\n", err)
		os.Exit(1)
	}

	level := logs.LevelFromString(cfg.LogLevel)
	log = logs.New("MAIN", level)
	minerLog = logs.New("MINR", level)
	peerLog = logs.New("PEER", level)
	nodeLog = logs.New("NODE", level)
}
