package block

import (
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/difficulty"
	"github.com/daglabs/ledgerd/ledgererr"
	"github.com/daglabs/ledgerd/transaction"
)

// History is the read-only view of a branch's accepted blocks that
// Validate needs. It is implemented by chain.Branch; kept as an
// interface here so block never has to import chain (chain already
// imports block).
type History interface {
	// Tip returns the branch's current top block, or nil if the branch
	// is still empty (the next block to validate would be the genesis
	// block).
	Tip() *Block
	// BlockByID returns the block at the given id in this branch's
	// history, if any.
	BlockByID(id uint64) (*Block, bool)
	// SampleTimestamps returns the millisecond timestamps of the first
	// and last block of the difficulty sampling window ending at endID,
	// or (nil, nil) if the window hasn't filled yet.
	SampleTimestamps(endID uint64) (start *int64, end *int64)
	// WalletStatus folds every block in the branch up to and including
	// the current tip for address.
	WalletStatus(address crypto.Hash) transaction.Status
}

// MaxClockSkewMs bounds how far into the future a block's timestamp may
// sit relative to the validator's local clock. Difficulty adjustment is
// derived from timestamps, so a block dated far ahead would bias it.
const MaxClockSkewMs = 2 * 60 * 60 * 1000 // 2 hours

// Validate checks every consensus invariant -- size, linkage, target,
// proof of work, timestamp skew, transaction content and accounting --
// against history, which represents the branch this block would extend.
// It does not append the block anywhere; chain.Branch.Add calls this and
// only appends on a nil result.
func (b *Block) Validate(history History, localNowMs int64) error {
	if _, err := b.Serialize(); err != nil {
		return err
	}

	if err := b.validateLinkage(history); err != nil {
		return err
	}

	if err := b.validateTarget(history); err != nil {
		return err
	}

	if !b.IsPoWValid() {
		return ledgererr.Newf(ledgererr.KindBadPoW, "block %d hash exceeds target", b.ID)
	}

	if b.TimestampMs > localNowMs+MaxClockSkewMs {
		return ledgererr.Newf(ledgererr.KindBadTarget, "block %d timestamp %d too far in the future", b.ID, b.TimestampMs)
	}

	if err := b.validateTransactions(history); err != nil {
		return err
	}

	return nil
}

func (b *Block) validateLinkage(history History) error {
	tip := history.Tip()
	if tip == nil {
		if b.ID != 0 {
			return ledgererr.Newf(ledgererr.KindBadPrevHash, "first block of branch has id %d, want 0", b.ID)
		}
		if b.PrevHash != (crypto.Hash{}) {
			return ledgererr.New(ledgererr.KindBadPrevHash, "genesis block must have zero prev hash")
		}
		return nil
	}

	if b.ID != tip.ID+1 {
		return ledgererr.Newf(ledgererr.KindBadPrevHash, "block id %d does not follow tip id %d", b.ID, tip.ID)
	}
	if !b.PrevHash.Equal(tip.Hash()) {
		return ledgererr.Newf(ledgererr.KindBadPrevHash, "block %d prev hash does not match tip", b.ID)
	}
	return nil
}

func (b *Block) validateTarget(history History) error {
	var prevTarget = difficulty.GenesisTarget
	var start, end *int64
	if b.ID > 0 {
		prevBlock, ok := history.BlockByID(b.ID - 1)
		if !ok {
			return ledgererr.Newf(ledgererr.KindBadPrevHash, "missing block %d needed to validate target", b.ID-1)
		}
		prevTarget = prevBlock.Target
		start, end = history.SampleTimestamps(b.ID - 1)
	}

	expected := difficulty.Calculate(prevTarget, start, end)
	if b.Target.Cmp(expected) != 0 {
		return ledgererr.Newf(ledgererr.KindBadTarget, "block %d target %s does not match expected %s", b.ID, b.Target.String(), expected.String())
	}
	return nil
}

func (b *Block) validateTransactions(history History) error {
	for _, t := range b.Transfers {
		if err := t.ValidateContent(); err != nil {
			return err
		}
	}
	for _, p := range b.Pages {
		if err := p.ValidateContent(); err != nil {
			return err
		}
	}

	for _, addr := range b.AddressesUsed() {
		prior := history.WalletStatus(addr)
		if _, ok := b.UpdateWalletStatus(addr, prior); !ok {
			return ledgererr.Newf(ledgererr.KindReplayedID, "block %d replays a transaction id for address %s", b.ID, addr.String())
		}
	}
	return nil
}
