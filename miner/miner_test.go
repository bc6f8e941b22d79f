package miner

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/chain"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/logs"
)

func TestMineNextAppendsAndReports(t *testing.T) {
	c, err := chain.New(t.TempDir())
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	defer c.Close()

	rewardTo := crypto.Sum([]byte("miner"))
	var mined *block.Block
	m := New(c, rewardTo, nil, logs.Disabled("MINR"), func(b *block.Block) { mined = b })

	if err := m.mineNext(context.Background()); err != nil {
		t.Fatalf("mineNext: %v", err)
	}

	if mined == nil {
		t.Fatal("onMined was not called")
	}
	if mined.ID != 0 {
		t.Fatalf("mined block id = %d, want 0", mined.ID)
	}

	top, err := c.Top()
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if top == nil || !top.Hash().Equal(mined.Hash()) {
		t.Fatal("mined block is not the chain tip")
	}
	if !top.IsPoWValid() {
		t.Fatal("mined block fails proof of work")
	}
}

func TestMineBlockPreempted(t *testing.T) {
	// An unsatisfiable target keeps the search running until preempted.
	b := block.New(nil, big.NewInt(0), crypto.Sum([]byte("miner")))

	preempt := make(chan struct{})
	done := make(chan bool)
	go func() {
		_, ok := mineBlock(context.Background(), preempt, b)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	close(preempt)

	select {
	case ok := <-done:
		if ok {
			t.Fatal("mineBlock reported success against a zero target")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("mineBlock did not stop after preemption")
	}
}

func TestMineBlockHonorsContext(t *testing.T) {
	b := block.New(nil, big.NewInt(0), crypto.Sum([]byte("miner")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := mineBlock(ctx, make(chan struct{}), b)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("mineBlock reported success after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("mineBlock did not stop after cancellation")
	}
}

func TestTrimToSizeKeepsBlockSerializable(t *testing.T) {
	b := block.New(nil, new(big.Int).Set(difficulty.GenesisTarget), crypto.Sum([]byte("miner")))
	trimToSize(b)
	if _, err := b.Serialize(); err != nil {
		t.Fatalf("an empty candidate does not serialize: %v", err)
	}
}
