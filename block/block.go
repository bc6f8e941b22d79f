// Package block implements the block data model: header fields,
// transaction lists, proof-of-work nonce, hashing, serialization and
// self-contained validation against a branch history.
package block

import (
	"bytes"
	"math/big"
	"time"

	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/transaction"
	"github.com/daglabs/ledgerd/wire"
)

// MaxSerializedSize is the maximum a serialized block may occupy.
const MaxSerializedSize = 16 * 1024 * 1024

// Block is a header plus its transaction lists and proof-of-work nonce.
// There is no separate "header" wire type: the whole block is what gets
// hashed and what the nonce search iterates over.
type Block struct {
	PrevHash    crypto.Hash
	ID          uint64
	RewardTo    crypto.Hash
	Transfers   []*transaction.Transfer
	Pages       []*transaction.Page
	TimestampMs int64
	Target      *big.Int
	Nonce       uint64 // TODO: may be undersized at high difficulties
}

// New builds an empty candidate block extending top (nil for the
// genesis block) with the given target, ready for AddTransfer/AddPage
// and then mining.
func New(top *Block, target *big.Int, rewardTo crypto.Hash) *Block {
	b := &Block{
		RewardTo:    rewardTo,
		TimestampMs: nowMs(),
		Target:      target,
	}
	if top == nil {
		b.ID = 0
		b.PrevHash = crypto.Hash{}
	} else {
		b.ID = top.ID + 1
		b.PrevHash = top.Hash()
	}
	return b
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// AddTransfer appends a Transfer to the candidate block.
func (b *Block) AddTransfer(t *transaction.Transfer) {
	b.Transfers = append(b.Transfers, t)
}

// AddPage appends a Page to the candidate block.
func (b *Block) AddPage(p *transaction.Page) {
	b.Pages = append(b.Pages, p)
}

// Serialize encodes the block using the canonical binary encoding,
// failing with KindBlockTooLarge if the result exceeds MaxSerializedSize.
func (b *Block) Serialize() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := b.encode(buf); err != nil {
		return nil, err
	}
	if buf.Len() > MaxSerializedSize {
		return nil, ledgererr.Newf(ledgererr.KindBlockTooLarge,
			"block %d serializes to %d bytes, exceeds %d", b.ID, buf.Len(), MaxSerializedSize)
	}
	return buf.Bytes(), nil
}

func (b *Block) encode(w *bytes.Buffer) error {
	if err := wire.WriteElement(w, b.PrevHash); err != nil {
		return err
	}
	if err := wire.WriteElement(w, b.ID); err != nil {
		return err
	}
	if err := wire.WriteElement(w, b.RewardTo); err != nil {
		return err
	}

	if err := wire.WriteCollectionLen(w, len(b.Transfers)); err != nil {
		return err
	}
	for _, t := range b.Transfers {
		if err := t.Encode(w); err != nil {
			return err
		}
	}

	if err := wire.WriteCollectionLen(w, len(b.Pages)); err != nil {
		return err
	}
	for _, p := range b.Pages {
		if err := p.Encode(w); err != nil {
			return err
		}
	}

	if err := wire.WriteElement(w, uint64(b.TimestampMs)); err != nil {
		return err
	}

	targetBytes := targetToBytes(b.Target)
	if err := wire.WriteElement(w, crypto.Hash(targetBytes)); err != nil {
		return err
	}

	return wire.WriteElement(w, b.Nonce)
}

// Deserialize reads a block using the canonical binary encoding.
func Deserialize(data []byte) (*Block, error) {
	if len(data) > MaxSerializedSize {
		return nil, ledgererr.Newf(ledgererr.KindBlockTooLarge, "serialized block is %d bytes, exceeds %d", len(data), MaxSerializedSize)
	}
	r := bytes.NewReader(data)
	b := &Block{}

	if err := wire.ReadElement(r, &b.PrevHash); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &b.ID); err != nil {
		return nil, err
	}
	if err := wire.ReadElement(r, &b.RewardTo); err != nil {
		return nil, err
	}

	transferCount, err := wire.ReadCollectionLen(r)
	if err != nil {
		return nil, err
	}
	if transferCount > 0 {
		b.Transfers = make([]*transaction.Transfer, transferCount)
	}
	for i := range b.Transfers {
		t, err := transaction.DecodeTransfer(r)
		if err != nil {
			return nil, err
		}
		b.Transfers[i] = t
	}

	pageCount, err := wire.ReadCollectionLen(r)
	if err != nil {
		return nil, err
	}
	if pageCount > 0 {
		b.Pages = make([]*transaction.Page, pageCount)
	}
	for i := range b.Pages {
		p, err := transaction.DecodePage(r)
		if err != nil {
			return nil, err
		}
		b.Pages[i] = p
	}

	var tsRaw uint64
	if err := wire.ReadElement(r, &tsRaw); err != nil {
		return nil, err
	}
	b.TimestampMs = int64(tsRaw)

	var targetBytes crypto.Hash
	if err := wire.ReadElement(r, &targetBytes); err != nil {
		return nil, err
	}
	b.Target = new(big.Int).SetBytes(targetBytes[:])

	if err := wire.ReadElement(r, &b.Nonce); err != nil {
		return nil, err
	}

	return b, nil
}

func targetToBytes(target *big.Int) (out [32]byte) {
	tb := target.Bytes()
	copy(out[32-len(tb):], tb)
	return out
}

// Hash returns hash(serialize(block)). A block that exceeds the size
// limit hashes to the zero hash -- callers that care must check Serialize
// (or Validate) first, which is what every real call site does.
func (b *Block) Hash() crypto.Hash {
	data, err := b.Serialize()
	if err != nil {
		return crypto.Hash{}
	}
	return crypto.Sum(data)
}

// CalculateReward returns the fixed block reward.
//
// FIXME: emission schedule not defined.
func (b *Block) CalculateReward() float64 {
	return transaction.BlockReward
}

// AddressesUsed returns every address this block's transactions touch:
// senders, recipients, page sites and inputs, and the reward recipient.
// The node uses it to decide which wallet projections need refreshing
// after a block lands.
func (b *Block) AddressesUsed() []crypto.Hash {
	seen := make(map[crypto.Hash]struct{})
	var out []crypto.Hash
	add := func(h crypto.Hash) {
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	add(b.RewardTo)
	for _, t := range b.Transfers {
		add(t.Header.Address())
		add(t.Header.Recipient)
	}
	for _, p := range b.Pages {
		add(p.Site)
		for _, in := range p.Inputs {
			add(in.Address)
		}
	}
	return out
}

// IsPoWValid reports whether the block's hash, read as a big-endian
// unsigned integer, is at or below its target.
func (b *Block) IsPoWValid() bool {
	data, err := b.Serialize()
	if err != nil {
		return false
	}
	hash := crypto.Sum(data)
	h := new(big.Int).SetBytes(hash[:])
	return h.Cmp(b.Target) <= 0
}
