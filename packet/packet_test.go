package packet

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/datastore"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/transaction"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode(%s): %v", p.Command(), err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s): %v", p.Command(), err)
	}
	return got
}

func TestOnConnectedRoundTrip(t *testing.T) {
	got := roundTrip(t, &OnConnected{Port: 8333})
	if oc, ok := got.(*OnConnected); !ok || oc.Port != 8333 {
		t.Fatalf("got %s", spew.Sdump(got))
	}
}

func TestKnownNodeRoundTrip(t *testing.T) {
	got := roundTrip(t, &KnownNode{Address: "10.0.0.7:8333"})
	if kn, ok := got.(*KnownNode); !ok || kn.Address != "10.0.0.7:8333" {
		t.Fatalf("got %s", spew.Sdump(got))
	}
}

func TestBlockRequestRoundTrip(t *testing.T) {
	got := roundTrip(t, &BlockRequest{ID: 42})
	if br, ok := got.(*BlockRequest); !ok || br.ID != 42 {
		t.Fatalf("got %s", spew.Sdump(got))
	}
}

func TestPingRoundTrip(t *testing.T) {
	if _, ok := roundTrip(t, &Ping{}).(*Ping); !ok {
		t.Fatal("decoded packet is not a Ping")
	}
}

func TestTransferRoundTrip(t *testing.T) {
	priv, _, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	tr, err := transaction.NewTransfer(priv, 3, crypto.Sum([]byte("recipient")), 4.0, 1.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	got := roundTrip(t, &TransferPacket{Transfer: tr})
	tp, ok := got.(*TransferPacket)
	if !ok {
		t.Fatalf("got %s", spew.Sdump(got))
	}
	if !reflect.DeepEqual(tp.Transfer, tr) {
		t.Fatalf("transfer changed in transit:\nsent %s\ngot %s", spew.Sdump(tr), spew.Sdump(tp.Transfer))
	}
	if err := tp.Transfer.ValidateContent(); err != nil {
		t.Fatalf("decoded transfer no longer validates: %v", err)
	}
}

func TestPageRoundTrip(t *testing.T) {
	site := crypto.Sum([]byte("site"))
	pg := &transaction.Page{
		ID:         1,
		Site:       site,
		DataHashes: []crypto.Hash{crypto.Sum([]byte("chunk0"))},
		DataLength: 1000,
		Fee:        0.5,
		Inputs:     []transaction.Input{{Address: site, Amount: 1000.0/(1024*1024) + 0.5}},
	}

	unit := datastore.DataUnit{Chunks: [][]byte{[]byte("the page content")}}
	got := roundTrip(t, &PagePacket{Page: pg, Data: unit})
	pp, ok := got.(*PagePacket)
	if !ok {
		t.Fatalf("got %s", spew.Sdump(got))
	}
	if !reflect.DeepEqual(pp.Page, pg) {
		t.Fatalf("page changed in transit:\nsent %s\ngot %s", spew.Sdump(pg), spew.Sdump(pp.Page))
	}
	if !reflect.DeepEqual(pp.Data, unit) {
		t.Fatalf("page content changed in transit:\nsent %s\ngot %s", spew.Sdump(unit), spew.Sdump(pp.Data))
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := block.New(nil, new(big.Int).Set(difficulty.GenesisTarget), crypto.Sum([]byte("winner")))
	b.Nonce = 77

	got := roundTrip(t, &BlockPacket{Block: b})
	bp, ok := got.(*BlockPacket)
	if !ok {
		t.Fatalf("got %s", spew.Sdump(got))
	}
	if !bp.Block.Hash().Equal(b.Hash()) {
		t.Fatalf("block hash changed in transit:\nsent %s\ngot %s", spew.Sdump(b), spew.Sdump(bp.Block))
	}
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	if _, err := Decode([]byte{0xff}); err == nil {
		t.Fatal("expected an error for an unknown command byte")
	}
}
