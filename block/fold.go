package block

import (
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/transaction"
)

// UpdateWalletStatus folds this block's effect on address into status:
// the block reward if address is the reward recipient, then every
// Transfer and Page in order. A fold failing at any transaction (a
// replayed id) aborts the whole block's computation, returning ok=false.
func (b *Block) UpdateWalletStatus(address crypto.Hash, status transaction.Status) (transaction.Status, bool) {
	isWinner := address.Equal(b.RewardTo)
	if isWinner {
		status.Balance += b.CalculateReward()
	}

	for _, t := range b.Transfers {
		next, ok := t.Update(address, status, isWinner)
		if !ok {
			return transaction.Status{}, false
		}
		status = next
	}

	for _, p := range b.Pages {
		next, ok := p.Update(address, status, isWinner)
		if !ok {
			return transaction.Status{}, false
		}
		status = next
	}

	return status, true
}
