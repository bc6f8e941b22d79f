package block

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/transaction"
)

func mustKeygen(t *testing.T) (*crypto.PrivateKey, crypto.Hash) {
	t.Helper()
	priv, pub, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	return priv, crypto.Address(pub)
}

func genesisTarget() *big.Int {
	return new(big.Int).Set(difficulty.GenesisTarget)
}

func TestSerializeRoundTrip(t *testing.T) {
	priv, addr := mustKeygen(t)
	_, other := mustKeygen(t)

	b := New(nil, genesisTarget(), addr)
	tr, err := transaction.NewTransfer(priv, 0, other, 4.0, 1.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	b.AddTransfer(tr)
	b.Nonce = 12345

	data, err := b.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if !reflect.DeepEqual(got, b) {
		t.Fatalf("round trip changed the block:\nbefore %s\nafter %s", spew.Sdump(b), spew.Sdump(got))
	}
}

func TestHashIsStable(t *testing.T) {
	_, addr := mustKeygen(t)
	b := New(nil, genesisTarget(), addr)

	h1 := b.Hash()
	h2 := b.Hash()
	if !h1.Equal(h2) {
		t.Fatalf("hashing the same block twice gave %s and %s", h1.String(), h2.String())
	}

	b.Nonce++
	if b.Hash().Equal(h1) {
		t.Fatal("changing the nonce did not change the hash")
	}
}

func TestNewLinksToTop(t *testing.T) {
	_, addr := mustKeygen(t)

	genesis := New(nil, genesisTarget(), addr)
	if genesis.ID != 0 {
		t.Fatalf("genesis id = %d, want 0", genesis.ID)
	}
	if genesis.PrevHash != (crypto.Hash{}) {
		t.Fatal("genesis prev hash is not zero")
	}

	next := New(genesis, genesisTarget(), addr)
	if next.ID != 1 {
		t.Fatalf("next id = %d, want 1", next.ID)
	}
	if !next.PrevHash.Equal(genesis.Hash()) {
		t.Fatal("next block's prev hash does not match the genesis hash")
	}
}

func TestWalletFoldWinnerAndRecipient(t *testing.T) {
	priv, winner := mustKeygen(t)
	_, other := mustKeygen(t)

	b := New(nil, genesisTarget(), winner)
	tr, err := transaction.NewTransfer(priv, 1, other, 4.0, 1.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	b.AddTransfer(tr)

	// The winner both pays amount+fee and collects reward+fee, so the
	// fee cancels out.
	status, ok := b.UpdateWalletStatus(winner, transaction.ZeroStatus())
	if !ok {
		t.Fatal("fold aborted for the winner")
	}
	if status.Balance != b.CalculateReward()-4.0 {
		t.Fatalf("winner balance = %f, want %f", status.Balance, b.CalculateReward()-4.0)
	}
	if status.HighestID != 1 {
		t.Fatalf("winner watermark = %d, want 1", status.HighestID)
	}

	status, ok = b.UpdateWalletStatus(other, transaction.ZeroStatus())
	if !ok {
		t.Fatal("fold aborted for the recipient")
	}
	if status.Balance != 4.0 {
		t.Fatalf("recipient balance = %f, want 4.0", status.Balance)
	}
	if status.HighestID != -1 {
		t.Fatalf("recipient watermark = %d, want -1 (it sent nothing)", status.HighestID)
	}
}

func TestWalletFoldRejectsReplayedID(t *testing.T) {
	priv, winner := mustKeygen(t)
	_, other := mustKeygen(t)

	b := New(nil, genesisTarget(), winner)
	for _, id := range []uint32{2, 2} {
		tr, err := transaction.NewTransfer(priv, id, other, 1.0, 0)
		if err != nil {
			t.Fatalf("NewTransfer: %v", err)
		}
		b.AddTransfer(tr)
	}

	if _, ok := b.UpdateWalletStatus(winner, transaction.ZeroStatus()); ok {
		t.Fatal("fold accepted two transactions with the same id")
	}
}

func TestAddressesUsed(t *testing.T) {
	priv, winner := mustKeygen(t)
	_, other := mustKeygen(t)
	senderAddr := crypto.Address(mustPublicKey(t, priv))

	b := New(nil, genesisTarget(), winner)
	tr, err := transaction.NewTransfer(priv, 0, other, 4.0, 1.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	b.AddTransfer(tr)

	used := b.AddressesUsed()
	want := map[crypto.Hash]bool{winner: false, other: false, senderAddr: false}
	for _, addr := range used {
		if _, ok := want[addr]; !ok {
			t.Fatalf("unexpected address %s in AddressesUsed", addr.String())
		}
		want[addr] = true
	}
	for addr, seen := range want {
		if !seen {
			t.Fatalf("address %s missing from AddressesUsed", addr.String())
		}
	}
}

func mustPublicKey(t *testing.T, priv *crypto.PrivateKey) crypto.PublicKey {
	t.Helper()
	pub, err := priv.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	return pub
}

func TestMerkleRootDuplicatesOddLeaf(t *testing.T) {
	priv, winner := mustKeygen(t)
	_, other := mustKeygen(t)

	b := New(nil, genesisTarget(), winner)
	for id := uint32(0); id < 3; id++ {
		tr, err := transaction.NewTransfer(priv, id, other, 1.0, 0)
		if err != nil {
			t.Fatalf("NewTransfer: %v", err)
		}
		b.AddTransfer(tr)
	}

	root, err := b.MerkleRoot()
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}

	// Recompute by hand: pair (h0,h1), duplicate h2, then pair the two
	// level-one nodes.
	var leaves []crypto.Hash
	for _, tr := range b.Transfers {
		h, err := tr.Header.Hash()
		if err != nil {
			t.Fatalf("Header.Hash: %v", err)
		}
		leaves = append(leaves, h)
	}
	pair := func(a, b crypto.Hash) crypto.Hash {
		return crypto.Sum(append(a[:], b[:]...))
	}
	want := pair(pair(leaves[0], leaves[1]), pair(leaves[2], leaves[2]))
	if !root.Equal(want) {
		t.Fatalf("merkle root = %s, want %s", root.String(), want.String())
	}
}

func TestMerkleRootEmptyBlock(t *testing.T) {
	_, winner := mustKeygen(t)
	b := New(nil, genesisTarget(), winner)
	root, err := b.MerkleRoot()
	if err != nil {
		t.Fatalf("MerkleRoot: %v", err)
	}
	if root != (crypto.Hash{}) {
		t.Fatalf("empty block merkle root = %s, want zero", root.String())
	}
}

func TestPoWValidation(t *testing.T) {
	_, winner := mustKeygen(t)
	b := New(nil, genesisTarget(), winner)

	for !b.IsPoWValid() {
		b.Nonce++
	}

	// PoW monotonicity: a hash at or below target validates.
	if !b.IsPoWValid() {
		t.Fatal("a mined block stopped validating")
	}

	b.Target = big.NewInt(0)
	if b.IsPoWValid() {
		t.Fatal("a zero target accepted a nonzero hash")
	}
}

func TestDeserializeRejectsOversizedInput(t *testing.T) {
	data := make([]byte, MaxSerializedSize+1)
	_, err := Deserialize(data)
	if !ledgererr.Is(err, ledgererr.KindBlockTooLarge) {
		t.Fatalf("expected KindBlockTooLarge, got %v", err)
	}
}
