package chain

import (
	"github.com/daglabs/ledgerd/block"
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/transaction"
)

// prefixHistory presents the first `length` blocks of a branch as a
// block.History of their own. Chain.Add validates a forking block against
// the parent chain up to block.ID-1, not against the branch's full
// history -- the branch's tip is exactly the block the fork competes
// with.
type prefixHistory struct {
	br     *Branch
	length uint64
}

func (p prefixHistory) Tip() *block.Block {
	if p.length == 0 {
		return nil
	}
	b, ok := p.br.BlockByID(p.length - 1)
	if !ok {
		return nil
	}
	return b
}

func (p prefixHistory) BlockByID(id uint64) (*block.Block, bool) {
	if id >= p.length {
		return nil, false
	}
	return p.br.BlockByID(id)
}

func (p prefixHistory) SampleTimestamps(endID uint64) (*int64, *int64) {
	if endID >= p.length {
		return nil, nil
	}
	return p.br.SampleTimestamps(endID)
}

func (p prefixHistory) WalletStatus(address crypto.Hash) transaction.Status {
	if p.length == 0 {
		return transaction.ZeroStatus()
	}
	return p.br.walletStatusThrough(address, p.length-1)
}
