package chain

import "github.com/daglabs/ledgerd/ledgererr"

// errDuplicateBlock and errNoValidBranch are the two non-validation
// rejections Chain.Add can return.
func errDuplicateBlock(id uint64) error {
	return ledgererr.Newf(ledgererr.KindDuplicateBlock, "block %d already present in chain", id)
}

func errNoValidBranch(id uint64) error {
	return ledgererr.Newf(ledgererr.KindNoValidBranch, "block %d extends no known branch and validates against none", id)
}
