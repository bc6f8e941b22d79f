// ledgerd runs one full node: the chain store, the proof-of-work miner,
// and the gossip server, wired together through the node package's
// packet handler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daglabs/ledgerd/chain"
	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/miner"
	"github.com/daglabs/ledgerd/node"
	"github.com/daglabs/ledgerd/peer"
	"github.com/daglabs/ledgerd/util/panics"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing configuration: %s\n", err)
		os.Exit(1)
	}

	initLogs(cfg)
	defer panics.HandlePanic(log, nil)

	if err := run(cfg); err != nil {
		panics.Exit(log, fmt.Sprintf("%+v", err))
	}
	logs.CloseBackend()
}

func run(cfg *config) error {
	ledger, err := chain.New(cfg.chainDir())
	if err != nil {
		return err
	}
	defer ledger.Close()

	pool := node.NewPool()
	n := node.New(ledger, pool, nodeLog)

	server, err := peer.NewServer(cfg.Port, cfg.addrBookPath(), n, peerLog)
	if err != nil {
		return err
	}
	defer server.Close()
	n.SetConnectionManager(server.ConnectionManager())

	for _, address := range cfg.ConnectPeers {
		server.ConnectionManager().RegisterNode(address, "", false)
	}

	m := miner.New(ledger, cfg.rewardAddress, pool, minerLog, n.BroadcastMined)
	n.SetMiner(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	minerDone := make(chan struct{})
	spawn := panics.GoroutineWrapperFunc(minerLog)
	spawn(func() {
		defer close(minerDone)
		m.Run(ctx)
	})

	log.Infof("ledgerd listening on port %d, data in %s", cfg.Port, cfg.DataDir)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Infof("shutting down")
	cancel()
	m.NotifyNewTop()
	<-minerDone
	return nil
}
