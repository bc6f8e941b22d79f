package node

import (
	"testing"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/chain"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/datastore"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/logs"
	"github.com/daglabs/ledgerd/packet"
	"github.com/daglabs/ledgerd/peer"
	"github.com/daglabs/ledgerd/transaction"
)

func openTestNode(t *testing.T) (*Node, *chain.Chain, *Pool) {
	t.Helper()
	c, err := chain.New(t.TempDir())
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	pool := NewPool()
	n := New(c, pool, logs.Disabled("NODE"))
	return n, c, pool
}

func testManager() *peer.ConnectionManager {
	return peer.NewConnectionManager(0, nil, logs.Disabled("PEER"), nil)
}

func mineOn(t *testing.T, c *chain.Chain, rewardTo crypto.Hash) *block.Block {
	t.Helper()
	top, err := c.Top()
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	prevTarget := difficulty.GenesisTarget
	if top != nil {
		prevTarget = top.Target
	}
	start, end, err := c.TakeSample()
	if err != nil {
		t.Fatalf("TakeSample: %v", err)
	}
	b := block.New(top, difficulty.Calculate(prevTarget, start, end), rewardTo)
	for !b.IsPoWValid() {
		b.Nonce++
	}
	return b
}

func TestHandleBlockAcceptsAndAdvancesTop(t *testing.T) {
	n, c, _ := openTestNode(t)
	b := mineOn(t, c, crypto.Sum([]byte("remote miner")))

	n.OnPacket("peer:1", &packet.BlockPacket{Block: b}, testManager())

	topID, err := c.TopID()
	if err != nil {
		t.Fatalf("TopID: %v", err)
	}
	if topID != 0 {
		t.Fatalf("top id = %d, want 0", topID)
	}
}

func TestHandleBlockDropsInvalid(t *testing.T) {
	n, c, _ := openTestNode(t)
	b := mineOn(t, c, crypto.Sum([]byte("remote miner")))
	b.Nonce = 0 // almost certainly spoils the proof of work
	if b.IsPoWValid() {
		t.Skip("nonce 0 happens to satisfy the target")
	}

	n.OnPacket("peer:1", &packet.BlockPacket{Block: b}, testManager())

	top, err := c.Top()
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if top != nil {
		t.Fatal("an invalid block advanced the chain")
	}
}

func TestHandleTransferPoolsValid(t *testing.T) {
	n, _, pool := openTestNode(t)

	priv, _, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	tr, err := transaction.NewTransfer(priv, 0, crypto.Sum([]byte("recipient")), 2.0, 0.1)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	n.OnPacket("peer:1", &packet.TransferPacket{Transfer: tr}, testManager())

	if got := len(pool.PendingTransfers()); got != 1 {
		t.Fatalf("pending transfers = %d, want 1", got)
	}

	// The same transfer arriving again is not pooled twice.
	n.OnPacket("peer:2", &packet.TransferPacket{Transfer: tr}, testManager())
	if got := len(pool.PendingTransfers()); got != 1 {
		t.Fatalf("pending transfers after duplicate = %d, want 1", got)
	}
}

func TestHandleTransferDropsNegative(t *testing.T) {
	n, _, pool := openTestNode(t)

	priv, _, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	tr, err := transaction.NewTransfer(priv, 0, crypto.Sum([]byte("recipient")), -1.6, 0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	n.OnPacket("peer:1", &packet.TransferPacket{Transfer: tr}, testManager())

	if got := len(pool.PendingTransfers()); got != 0 {
		t.Fatalf("pending transfers = %d, want 0", got)
	}
}

// fakePageStore records what the node hands it.
type fakePageStore struct {
	stored []datastore.DataUnit
}

func (s *fakePageStore) ForPageUpdates(pages []*transaction.Page) (datastore.DataUnit, error) {
	return datastore.DataUnit{}, nil
}

func (s *fakePageStore) Store(unit datastore.DataUnit) error {
	s.stored = append(s.stored, unit)
	return nil
}

func TestHandlePagePoolsAndStoresContent(t *testing.T) {
	n, _, pool := openTestNode(t)
	store := &fakePageStore{}
	n.SetPageStore(store)

	site := crypto.Sum([]byte("site"))
	content := []byte("hello")
	pg := &transaction.Page{
		ID:         0,
		Site:       site,
		DataHashes: []crypto.Hash{crypto.Sum(content)},
		DataLength: uint64(len(content)),
		Fee:        0,
		Inputs:     []transaction.Input{{Address: site, Amount: float64(len(content)) / (1024 * 1024)}},
	}
	if err := pg.ValidateContent(); err != nil {
		t.Fatalf("test page does not validate: %v", err)
	}

	unit := datastore.DataUnit{Chunks: [][]byte{content}}
	n.OnPacket("peer:1", &packet.PagePacket{Page: pg, Data: unit}, testManager())

	if got := len(pool.PendingPages()); got != 1 {
		t.Fatalf("pending pages = %d, want 1", got)
	}
	if len(store.stored) != 1 || store.stored[0].Len() != uint64(len(content)) {
		t.Fatalf("store received %d units, want the 5-byte one", len(store.stored))
	}
}

func TestPoolRemoveLanded(t *testing.T) {
	pool := NewPool()

	priv, _, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	tr, err := transaction.NewTransfer(priv, 4, crypto.Sum([]byte("recipient")), 1.0, 0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	if !pool.AddTransfer(tr) {
		t.Fatal("AddTransfer rejected a fresh transfer")
	}

	landed := &block.Block{Transfers: []*transaction.Transfer{tr}}
	pool.RemoveLanded(landed)

	if got := len(pool.PendingTransfers()); got != 0 {
		t.Fatalf("pending transfers after landing = %d, want 0", got)
	}
}

func TestPoolDiscardStale(t *testing.T) {
	pool := NewPool()

	priv, _, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	recipient := crypto.Sum([]byte("recipient"))

	for _, id := range []uint32{3, 7} {
		tr, err := transaction.NewTransfer(priv, id, recipient, 1.0, 0)
		if err != nil {
			t.Fatalf("NewTransfer: %v", err)
		}
		pool.AddTransfer(tr)
	}

	// The new canonical branch has already seen id 3 from this sender:
	// only id 7 survives.
	pool.DiscardStale(func(crypto.Hash) transaction.Status {
		return transaction.Status{HighestID: 3}
	})

	pending := pool.PendingTransfers()
	if len(pending) != 1 || pending[0].Header.ID != 7 {
		t.Fatalf("surviving pool entries = %v, want just id 7", pending)
	}
}
