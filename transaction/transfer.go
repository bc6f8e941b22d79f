package transaction

import (
	"bytes"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/wire"
)

// Transfer moves value from the sender named in its header to
// header.Recipient. Its signature covers the header's hash together with
// the sender's public exponent, tying a specific (pub, e) pair to the
// signed content.
type Transfer struct {
	Header    Header
	Signature crypto.Signature
	E         crypto.Exponent
}

// NewTransfer builds and signs a Transfer.
func NewTransfer(priv *crypto.PrivateKey, id uint32, recipient crypto.Hash, amount, fee float64) (*Transfer, error) {
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, err
	}
	e, err := priv.Exponent()
	if err != nil {
		return nil, err
	}
	header := Header{ID: id, From: pub, Recipient: recipient, Amount: amount, Fee: fee}
	hash, err := header.Hash()
	if err != nil {
		return nil, err
	}
	signable := signableBytes(hash, e)
	sigHash := crypto.Sum(signable)
	sig, err := crypto.Sign(priv, sigHash)
	if err != nil {
		return nil, err
	}
	return &Transfer{Header: header, Signature: sig, E: e}, nil
}

// signableBytes builds the bytes a Transfer's signature actually covers:
// the header hash and the sender's public exponent, tying the exponent
// carried on the wire to the signed content.
func signableBytes(headerHash crypto.Hash, e crypto.Exponent) []byte {
	out := make([]byte, 0, crypto.HashSize+crypto.ExponentSize)
	out = append(out, headerHash[:]...)
	out = append(out, e[:]...)
	return out
}

// ValidateContent checks the transaction-local invariants: amounts are
// non-negative, and the signature verifies against the header hash and
// exponent using the sender's own public key.
func (t *Transfer) ValidateContent() error {
	if err := ValidateNonNegative(t.Header.Amount, t.Header.Fee); err != nil {
		return err
	}

	headerHash, err := t.Header.Hash()
	if err != nil {
		return ledgererr.Wrap(ledgererr.KindSerializationError, err, "hashing transfer header")
	}
	sigHash := crypto.Sum(signableBytes(headerHash, t.E))

	result, err := crypto.Verify(t.Header.From, t.E, sigHash, t.Signature)
	if err != nil {
		return ledgererr.Wrap(ledgererr.KindBadSignature, err, "verifying transfer signature")
	}
	switch result {
	case crypto.VerifyOk:
		return nil
	case crypto.VerifyBadKey:
		return ledgererr.New(ledgererr.KindBadKey, "transfer signed with an invalid key")
	default:
		return ledgererr.New(ledgererr.KindBadSignature, "transfer signature does not verify")
	}
}

// Update implements Tx.
func (t *Transfer) Update(address crypto.Hash, status Status, isBlockWinner bool) (Status, bool) {
	from := t.Header.Address()

	if address.Equal(from) {
		status.Balance -= t.Header.Amount + t.Header.Fee
		if int64(t.Header.ID) <= status.HighestID {
			return Status{}, false
		}
		status.HighestID = int64(t.Header.ID)
	}

	if address.Equal(t.Header.Recipient) {
		status.Balance += t.Header.Amount
	}

	if isBlockWinner {
		status.Balance += t.Header.Fee
	}

	return status, true
}

// Encode writes the Transfer using the canonical binary encoding.
func (t *Transfer) Encode(w *bytes.Buffer) error {
	if err := t.Header.Encode(w); err != nil {
		return err
	}
	if err := wire.WriteElement(w, t.Signature); err != nil {
		return err
	}
	return wire.WriteElement(w, t.E)
}

// DecodeTransfer reads a Transfer using the canonical binary encoding.
func DecodeTransfer(r *bytes.Reader) (*Transfer, error) {
	header, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	var t Transfer
	t.Header = header
	if err := wire.ReadElement(r, &t.Signature); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &t.E); err != nil {
		return nil, err
	}
	return &t, nil
}
