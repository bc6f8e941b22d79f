package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/jessevdk/go-flags"
)

const (
	defaultDataDir      = "ledgerd-data"
	defaultPort         = 8333
	defaultLogFilename  = "ledgerd.log"
	defaultErrLogSuffix = "_err.log"
)

// config holds every setting the node needs at startup.
type config struct {
	DataDir       string   `long:"datadir" description:"Directory to store the chain and peer address book in"`
	Port          uint16   `long:"port" description:"TCP port to listen for peer connections on"`
	RewardAddress string   `long:"reward-address" description:"Hex-encoded address credited with mined block rewards" required:"true"`
	ConnectPeers  []string `long:"connect" description:"Address of a peer to dial at startup (may be given multiple times)"`
	LogLevel      string   `long:"loglevel" description:"Log level: trace, debug, info, warn, error, critical, off" default:"info"`

	rewardAddress crypto.Hash
}

func parseConfig() (*config, error) {
	cfg := &config{
		DataDir: defaultDataDir,
		Port:    defaultPort,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(cfg.RewardAddress)
	if err != nil || len(raw) != crypto.HashSize {
		return nil, fmt.Errorf("--reward-address must be %d hex-encoded bytes", crypto.HashSize)
	}
	copy(cfg.rewardAddress[:], raw)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	return cfg, nil
}

func (c *config) chainDir() string {
	return filepath.Join(c.DataDir, "chain")
}

func (c *config) addrBookPath() string {
	return filepath.Join(c.DataDir, "peers.db")
}

func (c *config) logFile() string {
	return filepath.Join(c.DataDir, "logs", defaultLogFilename)
}

func (c *config) errLogFile() string {
	return filepath.Join(c.DataDir, "logs", trimExt(defaultLogFilename)+defaultErrLogSuffix)
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
