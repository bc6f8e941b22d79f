// Package transaction implements the two transaction shapes -- Transfer
// and Page -- and the wallet-accounting fold contract they share.
package transaction

import (
	"bytes"
	"math"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/wire"
)

// Header is the information common to every transaction: a per-sender
// monotonic id, the sender's public key, a recipient address, an amount
// and a fee.
type Header struct {
	ID        uint32
	From      crypto.PublicKey
	Recipient crypto.Hash
	Amount    float64
	Fee       float64
}

// Hash returns the canonical hash of the header, the value every
// signature in this system covers.
func (h Header) Hash() (crypto.Hash, error) {
	buf := &bytes.Buffer{}
	if err := h.Encode(buf); err != nil {
		return crypto.Hash{}, err
	}
	return crypto.Sum(buf.Bytes()), nil
}

// Encode writes the header using the canonical binary encoding.
func (h Header) Encode(w *bytes.Buffer) error {
	if err := wire.WriteElement(w, h.ID); err != nil {
		return err
	}
	if err := wire.WriteElement(w, h.From); err != nil {
		return err
	}
	if err := wire.WriteElement(w, h.Recipient); err != nil {
		return err
	}
	if err := wire.WriteElement(w, math.Float64bits(h.Amount)); err != nil {
		return err
	}
	if err := wire.WriteElement(w, math.Float64bits(h.Fee)); err != nil {
		return err
	}
	return nil
}

// DecodeHeader reads a Header using the canonical binary encoding.
func DecodeHeader(r *bytes.Reader) (Header, error) {
	var h Header
	if err := wire.ReadElement(r, &h.ID); err != nil {
		return h, err
	}
	if err := wire.ReadElement(r, &h.From); err != nil {
		return h, err
	}
	if err := wire.ReadElement(r, &h.Recipient); err != nil {
		return h, err
	}
	var amountBits, feeBits uint64
	if err := wire.ReadElement(r, &amountBits); err != nil {
		return h, err
	}
	h.Amount = math.Float64frombits(amountBits)
	if err := wire.ReadElement(r, &feeBits); err != nil {
		return h, err
	}
	h.Fee = math.Float64frombits(feeBits)
	return h, nil
}

// Address returns the sender address implied by the header's public key.
func (h Header) Address() crypto.Hash {
	return crypto.Address(h.From)
}

// ValidateNonNegative checks the Negative edge case shared by every
// transaction shape: neither amount nor fee may be negative, and both
// must be finite.
func ValidateNonNegative(amount, fee float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return ledgererr.New(ledgererr.KindNegativeAmount, "amount must be a non-negative finite number")
	}
	if math.IsNaN(fee) || math.IsInf(fee, 0) || fee < 0 {
		return ledgererr.New(ledgererr.KindNegativeAmount, "fee must be a non-negative finite number")
	}
	return nil
}
