package block

import (
	"github.com/daglabs/ledgerd/crypto"
	"github.com/daglabs/ledgerd/transaction"
)

// MerkleRoot computes a pairwise-hash Merkle root over the block's
// transaction hashes, Transfers first (in order) then Pages (in order),
// duplicating the last unpaired leaf on odd levels. It is not part of
// consensus validation -- it exists for contexts that want a compact
// commitment to the transaction set without the full list.
func (b *Block) MerkleRoot() (crypto.Hash, error) {
	leaves := make([]crypto.Hash, 0, len(b.Transfers)+len(b.Pages))
	for _, t := range b.Transfers {
		h, err := t.Header.Hash()
		if err != nil {
			return crypto.Hash{}, err
		}
		leaves = append(leaves, h)
	}
	for _, p := range b.Pages {
		leaves = append(leaves, pageLeafHash(p))
	}

	if len(leaves) == 0 {
		return crypto.Hash{}, nil
	}
	return merkleRoot(leaves), nil
}

func pageLeafHash(p *transaction.Page) crypto.Hash {
	data := make([]byte, 0, 4+crypto.HashSize)
	data = append(data, byte(p.ID), byte(p.ID>>8), byte(p.ID>>16), byte(p.ID>>24))
	data = append(data, p.Site[:]...)
	return crypto.Sum(data)
}

func merkleRoot(level []crypto.Hash) crypto.Hash {
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]crypto.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			combined := make([]byte, 0, crypto.HashSize*2)
			combined = append(combined, level[i][:]...)
			combined = append(combined, level[i+1][:]...)
			next = append(next, crypto.Sum(combined))
		}
		level = next
	}
	return level[0]
}
