// Package miner implements the proof-of-work nonce search: build a
// candidate block under the chain's current tip, search for a winning
// nonce outside any lock so the rest of the node keeps running, then
// re-validate and append it if it's still useful.
package miner

import (
	"context"
	"sync"
	"time"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/chain"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/transaction"
)

// Pool supplies pending transactions to fill a candidate block with. The
// miner only reads from it; removing landed entries is up to whoever
// owns the pool (node.Node does so in BroadcastMined). Implemented by
// node.Pool; kept as an interface here to avoid a miner<->node import
// cycle.
type Pool interface {
	PendingTransfers() []*transaction.Transfer
	PendingPages() []*transaction.Page
}

// Miner repeatedly builds and mines candidate blocks for one chain.
type Miner struct {
	chain    *chain.Chain
	rewardTo crypto.Hash
	pool     Pool
	log      *logs.Logger
	onMined  func(*block.Block)

	mu      sync.Mutex
	preempt chan struct{}
}

// New builds a Miner that rewards rewardTo and hands every block it
// mines and successfully appends to onMined (the node uses this to
// broadcast it).
func New(c *chain.Chain, rewardTo crypto.Hash, pool Pool, log *logs.Logger, onMined func(*block.Block)) *Miner {
	return &Miner{
		chain:    c,
		rewardTo: rewardTo,
		pool:     pool,
		log:      log,
		onMined:  onMined,
		preempt:  make(chan struct{}),
	}
}

// NotifyNewTop interrupts any mining currently in progress, called
// whenever the chain's longest-branch tip changes for a reason other
// than this miner's own block landing (a gossiped competing block).
func (m *Miner) NotifyNewTop() {
	m.mu.Lock()
	close(m.preempt)
	m.preempt = make(chan struct{})
	m.mu.Unlock()
}

func (m *Miner) currentPreempt() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preempt
}

// Run mines one block after another until ctx is cancelled.
func (m *Miner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.mineNext(ctx); err != nil {
			m.log.Warnf("mining round failed: %s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (m *Miner) mineNext(ctx context.Context) error {
	top, err := m.chain.Top()
	if err != nil {
		return err
	}

	prevTarget := difficulty.GenesisTarget
	if top != nil {
		prevTarget = top.Target
	}
	start, end, err := m.chain.TakeSample()
	if err != nil {
		return err
	}
	target := difficulty.Calculate(prevTarget, start, end)

	candidate := block.New(top, target, m.rewardTo)
	if m.pool != nil {
		for _, t := range m.pool.PendingTransfers() {
			candidate.AddTransfer(t)
		}
		for _, p := range m.pool.PendingPages() {
			candidate.AddPage(p)
		}
		trimToSize(candidate)
	}

	mined, ok := mineBlock(ctx, m.currentPreempt(), candidate)
	if !ok {
		return nil
	}

	if err := m.chain.Add(mined); err != nil {
		// Losing the race to a gossiped block at the same height is
		// normal; the next round rebuilds on the new tip.
		if ledgererr.Is(err, ledgererr.KindBadPrevHash) || ledgererr.Is(err, ledgererr.KindDuplicateBlock) {
			m.log.Debugf("block %d superseded before append: %s", mined.ID, err)
			return nil
		}
		return err
	}

	m.log.Infof("won block %d at difficulty %f", mined.ID, difficulty.Display(mined.Target))
	if m.onMined != nil {
		m.onMined(mined)
	}
	return nil
}

// trimToSize drops pending transactions from the back of the candidate
// until it serializes under the block size cap. The dropped entries stay
// in the pool for a later block.
func trimToSize(b *block.Block) {
	for {
		_, err := b.Serialize()
		if err == nil || !ledgererr.Is(err, ledgererr.KindBlockTooLarge) {
			return
		}
		switch {
		case len(b.Pages) > 0:
			b.Pages = b.Pages[:len(b.Pages)-1]
		case len(b.Transfers) > 0:
			b.Transfers = b.Transfers[:len(b.Transfers)-1]
		default:
			return
		}
	}
}

// mineBlock increments b's nonce until its hash satisfies its target,
// ctx is cancelled, or preempt fires.
func mineBlock(ctx context.Context, preempt chan struct{}, b *block.Block) (*block.Block, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-preempt:
			return nil, false
		default:
		}

		if b.IsPoWValid() {
			return b, true
		}
		b.Nonce++
	}
}
