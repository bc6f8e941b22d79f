package transaction

import (
	"testing"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
)

func mustKeygen(t *testing.T) (*crypto.PrivateKey, crypto.Hash) {
	t.Helper()
	priv, pub, _, err := crypto.Keygen()
	if err != nil {
		t.Fatalf("Keygen: %v", err)
	}
	return priv, crypto.Address(pub)
}

func TestTransferValidateContentOk(t *testing.T) {
	priv, _ := mustKeygen(t)
	_, otherAddr := mustKeygen(t)

	tr, err := NewTransfer(priv, 0, otherAddr, 2.4, 0.2)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	if err := tr.ValidateContent(); err != nil {
		t.Fatalf("expected valid transfer, got %v", err)
	}
}

func TestTransferValidateContentNegativeAmount(t *testing.T) {
	priv, _ := mustKeygen(t)
	_, otherAddr := mustKeygen(t)

	tr, err := NewTransfer(priv, 1, otherAddr, -1.6, 0.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	err = tr.ValidateContent()
	if !ledgererr.Is(err, ledgererr.KindNegativeAmount) {
		t.Fatalf("expected KindNegativeAmount, got %v", err)
	}
}

func TestTransferUpdateBalancesAndReward(t *testing.T) {
	priv, winnerAddr := mustKeygen(t)
	_, otherAddr := mustKeygen(t)

	tr, err := NewTransfer(priv, 0, otherAddr, 4.0, 1.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	senderStatus, ok := tr.Update(winnerAddr, ZeroStatus(), true)
	if !ok {
		t.Fatalf("expected fold to succeed")
	}
	// Transfer.Update alone applies -amount-fee (sender) +fee (winner);
	// the block reward itself is credited separately by the block fold.
	if got, want := senderStatus.Balance, -4.0; got != want {
		t.Fatalf("sender balance = %f, want %f", got, want)
	}

	recipientStatus, ok := tr.Update(otherAddr, ZeroStatus(), false)
	if !ok {
		t.Fatalf("expected fold to succeed")
	}
	if recipientStatus.Balance != 4.0 {
		t.Fatalf("recipient balance = %f, want 4.0", recipientStatus.Balance)
	}
}

func TestTransferReplayRejected(t *testing.T) {
	priv, _ := mustKeygen(t)
	_, otherAddr := mustKeygen(t)

	tr, err := NewTransfer(priv, 3, otherAddr, 1.0, 0.0)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}

	senderAddr := crypto.Address(tr.Header.From)
	status := ZeroStatus()
	status.HighestID = 3 // already seen id 3 from this sender

	_, ok := tr.Update(senderAddr, status, false)
	if ok {
		t.Fatalf("expected replay rejection for id <= HighestID")
	}
}

func TestPageValidateContent(t *testing.T) {
	_, site := mustKeygen(t)
	page := &Page{
		ID:         0,
		Site:       site,
		DataHashes: []crypto.Hash{crypto.Sum([]byte("chunk"))},
		DataLength: 10,
		Fee:        0.1,
		Inputs: []Input{
			{Address: site, Amount: 10.0/float64(PageChunkSize) + 0.1},
		},
	}
	if err := page.ValidateContent(); err != nil {
		t.Fatalf("expected valid page, got %v", err)
	}
}

func TestPageValidateContentWrongHashCount(t *testing.T) {
	_, site := mustKeygen(t)
	page := &Page{
		ID:         0,
		Site:       site,
		DataHashes: nil,
		DataLength: uint64(PageChunkSize) + 1,
		Fee:        0,
		Inputs:     []Input{{Address: site, Amount: 2}},
	}
	err := page.ValidateContent()
	if !ledgererr.Is(err, ledgererr.KindWrongHashCount) {
		t.Fatalf("expected KindWrongHashCount, got %v", err)
	}
}
