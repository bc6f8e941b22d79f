// Package node wires the chain store, the pending-transaction pool and
// the peer network together: it is the peer.Handler that decides what to
// do with each kind of packet. The bulk page-content store is an
// external collaborator; the node shuttles content payloads between it
// and the wire but never interprets them.
package node

import (
	"sync"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/chain"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/datastore"
	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/miner"
	"github.com/daglabs/ledgerd/packet"
	"github.com/daglabs/ledgerd/peer"
	"github.com/daglabs/ledgerd/transaction"
)

// Node routes every packet peer.ConnectionManager delivers and owns the
// pending-transaction pool the miner draws from.
type Node struct {
	chain *chain.Chain
	pool  *Pool
	log   *logs.Logger

	mu    sync.Mutex
	miner *miner.Miner
	cm    *peer.ConnectionManager
	store datastore.PageStore
}

// New builds a Node over an already-open chain and pool.
func New(c *chain.Chain, pool *Pool, log *logs.Logger) *Node {
	return &Node{chain: c, pool: pool, log: log}
}

// SetMiner records the miner this node's blocks get mined by, so an
// accepted competing block can preempt it. Called once during startup
// wiring, after both have been constructed.
func (n *Node) SetMiner(m *miner.Miner) {
	n.mu.Lock()
	n.miner = m
	n.mu.Unlock()
}

// SetConnectionManager records the manager this node broadcasts through
// outside of handling an inbound packet -- specifically, when the miner
// hands back a block it just won.
func (n *Node) SetConnectionManager(cm *peer.ConnectionManager) {
	n.mu.Lock()
	n.cm = cm
	n.mu.Unlock()
}

// SetPageStore attaches the external content store. Without one the
// node still relays page metadata but drops the content payloads.
func (n *Node) SetPageStore(store datastore.PageStore) {
	n.mu.Lock()
	n.store = store
	n.mu.Unlock()
}

func (n *Node) pageStore() datastore.PageStore {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store
}

// BroadcastMined announces a block this node's own miner just appended:
// it's already in the chain, so only the pool cleanup, the prune pass
// and the gossip remain.
func (n *Node) BroadcastMined(b *block.Block) {
	n.pool.RemoveLanded(b)

	if err := n.chain.PruneBranches(); err != nil {
		n.log.Warnf("prune after mining block %d: %s", b.ID, err)
	}

	n.mu.Lock()
	cm := n.cm
	n.mu.Unlock()
	if cm != nil {
		cm.Broadcast(&packet.BlockPacket{Block: b})
	}
}

// branchWatermarks adapts the chain's longest-branch wallet projection to
// the pool's stale-entry sweep.
func (n *Node) branchWatermarks(address crypto.Hash) transaction.Status {
	status, err := n.chain.WalletStatus(address)
	if err != nil {
		n.log.Warnf("read wallet status for %s: %s", address.String(), err)
		return transaction.ZeroStatus()
	}
	return status
}

// OnPacket implements peer.Handler.
func (n *Node) OnPacket(from string, p packet.Packet, cm *peer.ConnectionManager) {
	switch msg := p.(type) {
	case *packet.OnConnected:
		n.handleOnConnected(from, cm)
	case *packet.BlockPacket:
		n.handleBlock(from, msg, cm)
	case *packet.BlockRequest:
		n.handleBlockRequest(from, msg, cm)
	case *packet.TransferPacket:
		n.handleTransfer(from, msg, cm)
	case *packet.PagePacket:
		n.handlePage(from, msg, cm)
	case *packet.Ping:
		n.log.Debugf("ping from %s", from)
	}
}

func fromOnly(from string) func(string) bool {
	return func(address string) bool { return address == from }
}

func exceptFrom(from string) func(string) bool {
	return func(address string) bool { return address != from }
}

// handleOnConnected proactively sends the current tip to a newly
// connected peer, so a node joining the cluster learns the chain head
// without having to ask. The tip's page content follows, one PagePacket
// per page, so the peer's content store catches up with its ledger.
func (n *Node) handleOnConnected(from string, cm *peer.ConnectionManager) {
	top, err := n.chain.Top()
	if err != nil {
		n.log.Warnf("read top for %s: %s", from, err)
		return
	}
	if top == nil {
		return
	}
	cm.SendTo(&packet.BlockPacket{Block: top}, fromOnly(from))

	store := n.pageStore()
	if store == nil {
		return
	}
	for _, pg := range top.Pages {
		unit, err := store.ForPageUpdates([]*transaction.Page{pg})
		if err != nil {
			n.log.Warnf("read content for page %d of site %s: %s", pg.ID, pg.Site.String(), err)
			continue
		}
		cm.SendTo(&packet.PagePacket{Page: pg, Data: unit}, fromOnly(from))
	}
}

// handleBlock validates and adds the gossiped block; if it becomes the
// new longest-branch tip, it's rebroadcast and the miner is preempted.
// A reorg away from the previous tip also flushes the pool of anything
// the new canonical branch already accounts for.
func (n *Node) handleBlock(from string, msg *packet.BlockPacket, cm *peer.ConnectionManager) {
	b := msg.Block

	oldTop, err := n.chain.Top()
	if err != nil {
		n.log.Warnf("read top before adding block %d: %s", b.ID, err)
		return
	}

	if err := n.chain.Add(b); err != nil {
		n.log.Debugf("rejected block %d from %s: %s", b.ID, from, err)
		return
	}

	newTop, err := n.chain.Top()
	if err != nil {
		n.log.Warnf("read top after adding block %d: %s", b.ID, err)
		return
	}

	if err := n.chain.PruneBranches(); err != nil {
		n.log.Warnf("prune after adding block %d: %s", b.ID, err)
	}

	changed := (oldTop == nil) != (newTop == nil) ||
		(oldTop != nil && newTop != nil && !oldTop.Hash().Equal(newTop.Hash()))
	if !changed {
		return
	}

	n.mu.Lock()
	m := n.miner
	n.mu.Unlock()
	if m != nil {
		m.NotifyNewTop()
	}

	n.pool.DiscardStale(n.branchWatermarks)

	if newTop != nil && newTop.Hash().Equal(b.Hash()) {
		cm.SendTo(msg, exceptFrom(from))
	}
}

// handleBlockRequest answers with the requested block from the longest
// branch, if present there.
func (n *Node) handleBlockRequest(from string, msg *packet.BlockRequest, cm *peer.ConnectionManager) {
	b, ok, err := n.chain.BlockByID(msg.ID)
	if err != nil {
		n.log.Warnf("read block %d for request: %s", msg.ID, err)
		return
	}
	if !ok {
		return
	}
	cm.SendTo(&packet.BlockPacket{Block: b}, fromOnly(from))
}

// handleTransfer validates and pools a gossiped transfer, rebroadcasting
// it to every peer but the one it arrived from if it's new.
func (n *Node) handleTransfer(from string, msg *packet.TransferPacket, cm *peer.ConnectionManager) {
	if err := msg.Transfer.ValidateContent(); err != nil {
		n.log.Debugf("rejected transfer from %s: %s", from, err)
		return
	}
	if !n.pool.AddTransfer(msg.Transfer) {
		return
	}
	cm.SendTo(msg, exceptFrom(from))
}

// handlePage validates and pools a gossiped page, hands its content to
// the store, and rebroadcasts it to every peer but the one it arrived
// from if it's new.
func (n *Node) handlePage(from string, msg *packet.PagePacket, cm *peer.ConnectionManager) {
	if err := msg.Page.ValidateContent(); err != nil {
		n.log.Debugf("rejected page from %s: %s", from, err)
		return
	}
	if !n.pool.AddPage(msg.Page) {
		return
	}

	if store := n.pageStore(); store != nil && len(msg.Data.Chunks) > 0 {
		if err := store.Store(msg.Data); err != nil {
			n.log.Warnf("store content for page %d from %s: %s", msg.Page.ID, from, err)
		}
	}

	cm.SendTo(msg, exceptFrom(from))
}
